package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
	"github.com/iago/feed-agent-back/internal/metrics"
)

var ErrEncoderUnavailable = errors.New("query encoder is not configured")

// Strategy is one step of the retrieval chain.
type Strategy interface {
	Name() domain.RetrievalPath
	Fetch(ctx context.Context, query string, predicate filter.Predicate, n int) ([]domain.Record, error)
}

// Retriever answers feed lookups. Implementations never fail: an empty
// slice means nothing matched or every backend was unavailable.
type Retriever interface {
	Retrieve(ctx context.Context, criteria domain.RetrievalCriteria) []domain.Record
}

type SimilarityStrategy struct {
	store      docstore.Store
	encoder    QueryEncoder
	normalizer *Normalizer
}

func NewSimilarityStrategy(store docstore.Store, encoder QueryEncoder, normalizer *Normalizer) *SimilarityStrategy {
	return &SimilarityStrategy{store: store, encoder: encoder, normalizer: normalizer}
}

func (s *SimilarityStrategy) Name() domain.RetrievalPath {
	return domain.RetrievalSimilarity
}

func (s *SimilarityStrategy) Fetch(
	ctx context.Context,
	query string,
	predicate filter.Predicate,
	n int,
) ([]domain.Record, error) {
	if s.encoder == nil {
		return nil, ErrEncoderUnavailable
	}
	vector, err := s.encoder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.SimilaritySearch(ctx, vector, predicate, n)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, s.normalizer.FromScored(hit))
	}
	return records, nil
}

type ExactStrategy struct {
	store      docstore.Store
	normalizer *Normalizer
}

func NewExactStrategy(store docstore.Store, normalizer *Normalizer) *ExactStrategy {
	return &ExactStrategy{store: store, normalizer: normalizer}
}

func (s *ExactStrategy) Name() domain.RetrievalPath {
	return domain.RetrievalExact
}

func (s *ExactStrategy) Fetch(
	ctx context.Context,
	_ string,
	predicate filter.Predicate,
	n int,
) ([]domain.Record, error) {
	documents, err := s.store.ExactQuery(ctx, predicate, n)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(documents))
	for _, document := range documents {
		records = append(records, s.normalizer.FromDocument(document))
	}
	return records, nil
}

type HybridRetrieverConfig struct {
	Strategies []Strategy
	MaxLimit   int
	Logger     *logrus.Logger
}

// HybridRetriever walks its strategies in order and returns the first
// non-empty result. A strategy that errors or finds nothing hands over to
// the next one.
type HybridRetriever struct {
	strategies []Strategy
	maxLimit   int
	logger     *logrus.Logger
}

func NewHybridRetriever(config HybridRetrieverConfig) *HybridRetriever {
	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &HybridRetriever{
		strategies: config.Strategies,
		maxLimit:   config.MaxLimit,
		logger:     logger,
	}
}

// NewDefaultRetriever wires the similarity-then-exact chain over one store.
func NewDefaultRetriever(
	store docstore.Store,
	encoder QueryEncoder,
	normalizer *Normalizer,
	maxLimit int,
	logger *logrus.Logger,
) *HybridRetriever {
	return NewHybridRetriever(HybridRetrieverConfig{
		Strategies: []Strategy{
			NewSimilarityStrategy(store, encoder, normalizer),
			NewExactStrategy(store, normalizer),
		},
		MaxLimit: maxLimit,
		Logger:   logger,
	})
}

func (r *HybridRetriever) Retrieve(ctx context.Context, criteria domain.RetrievalCriteria) []domain.Record {
	predicate := filter.Build(criteria)
	n := criteria.Limit(r.maxLimit)
	entry := r.logger.WithFields(logrus.Fields{
		"predicate": predicate.String(),
		"limit":     n,
	})

	for index, strategy := range r.strategies {
		if ctx.Err() != nil {
			entry.WithError(ctx.Err()).Warn("retrieval canceled")
			break
		}

		name := string(strategy.Name())
		records, err := safeFetch(ctx, strategy, criteria.Query, predicate, n)
		switch {
		case err != nil:
			metrics.RetrievalTotal.WithLabelValues(name, "error").Inc()
			entry.WithError(err).WithField("strategy", name).Warn("retrieval strategy failed")
			r.noteFallback(index, "error")
			continue
		case len(records) == 0:
			metrics.RetrievalTotal.WithLabelValues(name, "empty").Inc()
			r.noteFallback(index, "empty")
			continue
		}

		metrics.RetrievalTotal.WithLabelValues(name, "hit").Inc()
		metrics.RetrievedRecords.Observe(float64(len(records)))
		entry.WithFields(logrus.Fields{"strategy": name, "records": len(records)}).Debug("retrieval served")
		return records
	}

	metrics.RetrievedRecords.Observe(0)
	return []domain.Record{}
}

func (r *HybridRetriever) noteFallback(index int, reason string) {
	if index < len(r.strategies)-1 {
		metrics.RetrievalFallbacksTotal.WithLabelValues(reason).Inc()
	}
}

func safeFetch(
	ctx context.Context,
	strategy Strategy,
	query string,
	predicate filter.Predicate,
	n int,
) (records []domain.Record, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), recovered)
		}
	}()
	return strategy.Fetch(ctx, query, predicate, n)
}
