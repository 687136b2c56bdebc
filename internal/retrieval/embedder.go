package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/cache"
	"github.com/iago/feed-agent-back/internal/metrics"
)

// QueryEncoder turns free text into a query vector.
type QueryEncoder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryEmbedder embeds queries through an ai.Embedder, memoizing results.
type QueryEmbedder struct {
	embedder ai.Embedder
	cache    *cache.EmbeddingCache
	model    string
}

func NewQueryEmbedder(embedder ai.Embedder, embeddingCache *cache.EmbeddingCache, model string) *QueryEmbedder {
	return &QueryEmbedder{embedder: embedder, cache: embeddingCache, model: model}
}

func (e *QueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, ai.ErrClientUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("query text is required")
	}

	signature := ""
	if e.cache != nil {
		signature = e.cache.BuildSignature(e.model, text)
		if entry, ok := e.cache.Get(signature); ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return entry.Vector, nil
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	}

	result, err := e.embedder.Embed(ctx, ai.EmbedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(result.Vectors) == 0 || len(result.Vectors[0]) == 0 {
		return nil, errors.New("embed query: empty vector")
	}

	vector := result.Vectors[0]
	if e.cache != nil {
		e.cache.Set(signature, cache.Entry{Vector: vector, ModelID: result.ModelID})
	}
	return vector, nil
}
