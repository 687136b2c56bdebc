package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feed_agent"

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversational turns by outcome",
		},
		[]string{"outcome"}, // "ok", "recursion_exceeded", "reasoning_unavailable", "state_unavailable", "canceled"
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a full conversational turn",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	ReasoningCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_calls_total",
			Help:      "Language model invocations",
		},
		[]string{"model", "status"},
	)

	ReasoningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_duration_seconds",
			Help:      "Duration of language model invocations",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"model"},
	)

	ReasoningTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_tokens_total",
			Help:      "Tokens consumed by reasoning calls",
		},
		[]string{"model", "direction"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model",
		},
		[]string{"tool", "outcome"}, // "ok", "empty", "invalid_input", "unknown_tool"
	)

	RetrievalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Retrieval strategy attempts",
		},
		[]string{"strategy", "outcome"}, // outcome: "hit", "empty", "error"
	)

	RetrievalFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_fallbacks_total",
			Help:      "Times retrieval moved past the similarity strategy",
		},
		[]string{"reason"},
	)

	RetrievedRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_records",
			Help:      "Records returned per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	CheckpointOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_ops_total",
			Help:      "Checkpoint store operations",
		},
		[]string{"op", "outcome"},
	)

	TurnJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_jobs_total",
			Help:      "Asynchronous turn jobs by final status",
		},
		[]string{"status"},
	)
)
