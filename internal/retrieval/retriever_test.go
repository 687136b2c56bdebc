package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
)

type fakeStore struct {
	similar       []docstore.ScoredDocument
	similarErr    error
	exact         []docstore.Document
	exactErr      error
	panicOnExact  bool
	similarCalls  int
	exactCalls    int
	lastPredicate filter.Predicate
	lastN         int
}

func (s *fakeStore) SimilaritySearch(
	_ context.Context,
	_ []float32,
	predicate filter.Predicate,
	n int,
) ([]docstore.ScoredDocument, error) {
	s.similarCalls++
	s.lastPredicate = predicate
	s.lastN = n
	return s.similar, s.similarErr
}

func (s *fakeStore) ExactQuery(_ context.Context, predicate filter.Predicate, n int) ([]docstore.Document, error) {
	s.exactCalls++
	s.lastPredicate = predicate
	s.lastN = n
	if s.panicOnExact {
		panic("driver exploded")
	}
	return s.exact, s.exactErr
}

type fakeEncoder struct {
	err   error
	calls int
}

func (e *fakeEncoder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

var fixedNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestRetriever(store docstore.Store, encoder QueryEncoder) *HybridRetriever {
	return NewDefaultRetriever(store, encoder, NewNormalizer(func() time.Time { return fixedNow }), 100, nil)
}

func TestHybridRetrieverPrefersSimilarityHits(t *testing.T) {
	store := &fakeStore{
		similar: []docstore.ScoredDocument{{
			Document: docstore.Document{ID: "a", Fields: map[string]any{"country_code": "IN", "timestamp": "2025-07-02"}},
			Score:    0.91,
		}},
	}
	retriever := newTestRetriever(store, &fakeEncoder{})

	records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "india feeds", CountryCode: "IN"})

	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, domain.RetrievalSimilarity, records[0].Retrieval)
	assert.InDelta(t, 0.91, records[0].Score, 1e-9)
	assert.Equal(t, 0, store.exactCalls)
	assert.Equal(t, domain.DefaultRetrievalLimit, store.lastN)
	require.Len(t, store.lastPredicate.Equals, 1)
}

func TestHybridRetrieverFallsBackWhenSimilarityIsEmpty(t *testing.T) {
	store := &fakeStore{
		exact: []docstore.Document{
			{ID: "new", Fields: map[string]any{"status": "completed", "timestamp": "2025-07-03T10:00:00Z"}},
			{ID: "old", Fields: map[string]any{"status": "completed", "timestamp": "2025-07-01T10:00:00Z"}},
		},
	}
	retriever := newTestRetriever(store, &fakeEncoder{})

	records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "completed", N: 5})

	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, domain.RetrievalExact, records[0].Retrieval)
	assert.Equal(t, 1.0, records[0].Score)
	assert.Equal(t, 1, store.similarCalls)
	assert.Equal(t, 1, store.exactCalls)
	assert.Equal(t, 5, store.lastN)
}

func TestHybridRetrieverFallsBackOnEncoderFailure(t *testing.T) {
	store := &fakeStore{exact: []docstore.Document{{ID: "x", Fields: map[string]any{}}}}
	encoder := &fakeEncoder{err: errors.New("embedding provider down")}
	retriever := newTestRetriever(store, encoder)

	records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "anything"})

	require.Len(t, records, 1)
	assert.Equal(t, 0, store.similarCalls)
	assert.Equal(t, 1, encoder.calls)
}

func TestHybridRetrieverReturnsEmptyWhenEveryPathFails(t *testing.T) {
	store := &fakeStore{
		similarErr: errors.New("vector index missing"),
		exactErr:   errors.New("connection refused"),
	}
	retriever := newTestRetriever(store, &fakeEncoder{})

	records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "q"})

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, 1, store.exactCalls)
}

func TestHybridRetrieverContainsPanickingBackend(t *testing.T) {
	store := &fakeStore{panicOnExact: true}
	retriever := newTestRetriever(store, nil)

	assert.NotPanics(t, func() {
		records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "q"})
		assert.Empty(t, records)
	})
}

func TestHybridRetrieverCapsLimit(t *testing.T) {
	store := &fakeStore{}
	retriever := newTestRetriever(store, &fakeEncoder{})

	retriever.Retrieve(context.Background(), domain.RetrievalCriteria{Query: "q", N: 500})

	assert.Equal(t, 100, store.lastN)
}

func TestHybridRetrieverOverMemoryStore(t *testing.T) {
	store := docstore.NewMemoryStore()
	seed := []struct {
		id      string
		country string
		status  string
	}{
		{"r1", "IN", "completed"},
		{"r2", "IN", "completed"},
		{"r3", "IN", "failed"},
		{"r4", "US", "completed"},
		{"r5", "IN", "completed"},
	}
	documents := make([]docstore.EmbeddedDocument, 0, len(seed))
	for index, item := range seed {
		documents = append(documents, docstore.EmbeddedDocument{
			Document: docstore.Document{ID: item.id, Fields: map[string]any{
				"country_code": item.country,
				"status":       item.status,
				"timestamp":    time.Date(2025, 7, index+1, 0, 0, 0, 0, time.UTC),
			}},
			Embedding: []float32{float32(index + 1), 1},
		})
	}
	require.NoError(t, store.Insert(context.Background(), documents))

	retriever := newTestRetriever(store, &fakeEncoder{})
	records := retriever.Retrieve(context.Background(), domain.RetrievalCriteria{
		Query:       "completed feeds in india",
		CountryCode: "IN",
		Status:      "completed",
	})

	require.Len(t, records, 3)
	for _, record := range records {
		assert.Equal(t, "IN", record.CountryCode)
		assert.Equal(t, "completed", record.Status)
		assert.Equal(t, domain.RetrievalSimilarity, record.Retrieval)
	}
}
