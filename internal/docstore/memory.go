package docstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
)

// MemoryStore keeps documents in process for local development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	documents []EmbeddedDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make([]EmbeddedDocument, 0)}
}

func (s *MemoryStore) Insert(_ context.Context, documents []EmbeddedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, document := range documents {
		if document.ID == "" {
			document.ID = uuid.NewString()
		}
		document.Embedding = append([]float32(nil), document.Embedding...)
		document.Fields = cloneFields(document.Fields)
		s.documents = append(s.documents, document)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func (s *MemoryStore) SimilaritySearch(
	ctx context.Context,
	embedding []float32,
	predicate filter.Predicate,
	n int,
) ([]ScoredDocument, error) {
	if len(embedding) == 0 {
		return nil, ErrInvalidEmbedding
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]ScoredDocument, 0)
	for _, document := range s.documents {
		if len(document.Embedding) != len(embedding) {
			continue
		}
		if !predicate.Matches(document.Fields) {
			continue
		}
		hits = append(hits, ScoredDocument{
			Document: copyDocument(document.Document),
			Score:    cosineSimilarity(embedding, document.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (s *MemoryStore) ExactQuery(ctx context.Context, predicate filter.Predicate, n int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Document, 0)
	for _, document := range s.documents {
		if predicate.Matches(document.Fields) {
			matches = append(matches, copyDocument(document.Document))
		}
	}

	SortByRecency(matches)
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// SortByRecency orders documents by timestamp, newest first. Documents
// without a readable timestamp sort last, keeping their relative order.
func SortByRecency(documents []Document) {
	type keyed struct {
		document  Document
		timestamp time.Time
	}
	items := make([]keyed, 0, len(documents))
	for _, document := range documents {
		value, _ := domain.Lookup(document.Fields, domain.FieldTimestamp)
		parsed, _ := domain.AsTime(value)
		items = append(items, keyed{document: document, timestamp: parsed})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].timestamp.After(items[j].timestamp)
	})
	for index := range items {
		documents[index] = items[index].document
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for index := range a {
		dot += float64(a[index]) * float64(b[index])
		normA += float64(a[index]) * float64(a[index])
		normB += float64(b[index]) * float64(b[index])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyDocument(document Document) Document {
	document.Fields = cloneFields(document.Fields)
	return document
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	clone := make(map[string]any, len(fields))
	for key, value := range fields {
		if nested, ok := value.(map[string]any); ok {
			clone[key] = cloneFields(nested)
			continue
		}
		clone[key] = value
	}
	return clone
}
