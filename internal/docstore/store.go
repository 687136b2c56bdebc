package docstore

import (
	"context"
	"errors"

	"github.com/iago/feed-agent-back/internal/filter"
)

var ErrInvalidEmbedding = errors.New("embedding is required")

// Document is a stored feed entry in its raw backend shape. Fields may be
// flat or carry a nested "metadata" document.
type Document struct {
	ID     string
	Text   string
	Fields map[string]any
}

type ScoredDocument struct {
	Document
	Score float64
}

type EmbeddedDocument struct {
	Document
	Embedding []float32
}

// Store is the query contract consumed by the hybrid retriever.
type Store interface {
	SimilaritySearch(ctx context.Context, embedding []float32, predicate filter.Predicate, n int) ([]ScoredDocument, error)
	ExactQuery(ctx context.Context, predicate filter.Predicate, n int) ([]Document, error)
}

// Writer loads documents, used by seeding.
type Writer interface {
	Insert(ctx context.Context, documents []EmbeddedDocument) error
}

// ReadWriter is implemented by every concrete backend.
type ReadWriter interface {
	Store
	Writer
}
