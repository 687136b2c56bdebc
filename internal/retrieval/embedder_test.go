package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/cache"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, request ai.EmbedRequest) (ai.EmbedResult, error) {
	e.calls++
	if e.err != nil {
		return ai.EmbedResult{}, e.err
	}
	return ai.EmbedResult{Vectors: [][]float32{{0.1, 0.2, 0.3}}, ModelID: request.Model}, nil
}

func TestQueryEmbedderCachesByNormalizedText(t *testing.T) {
	embedder := &countingEmbedder{}
	queryEmbedder := NewQueryEmbedder(embedder, cache.NewEmbeddingCache(cache.Config{TTL: time.Minute}), "text-embedding-3-small")

	first, err := queryEmbedder.EmbedQuery(context.Background(), "Feeds from India")
	require.NoError(t, err)
	second, err := queryEmbedder.EmbedQuery(context.Background(), "  feeds   from india ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.calls)
}

func TestQueryEmbedderPropagatesProviderErrors(t *testing.T) {
	embedder := &countingEmbedder{err: errors.New("boom")}
	queryEmbedder := NewQueryEmbedder(embedder, nil, "m")

	_, err := queryEmbedder.EmbedQuery(context.Background(), "q")
	require.Error(t, err)

	_, err = NewQueryEmbedder(nil, nil, "m").EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ai.ErrClientUnavailable)
}

func TestQueryEmbedderRejectsBlankQuery(t *testing.T) {
	embedder := &countingEmbedder{}

	_, err := NewQueryEmbedder(embedder, nil, "m").EmbedQuery(context.Background(), "   ")

	require.Error(t, err)
	assert.Zero(t, embedder.calls)
}
