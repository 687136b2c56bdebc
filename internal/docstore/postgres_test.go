package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewPostgresStore(db, "")
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreRejectsUnsafeTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresStore(db, "feeds; DROP TABLE feeds")
	assert.Error(t, err)
}

func TestBuildWhereTranslatesPredicate(t *testing.T) {
	predicate := filter.Build(domain.RetrievalCriteria{
		Query:       "q",
		CountryCode: "IN",
		Status:      "completed",
		DateFrom:    "2024-01-01",
		DateTo:      "2024-01-31",
		MinRecords:  10,
		MinJobs:     2,
	})

	where, args := buildWhere(predicate, 2)

	assert.Equal(t,
		` AND document->>'country_code' = $2`+
			` AND document->>'status' = $3`+
			` AND "timestamp" >= $4`+
			` AND "timestamp" <= $5`+
			` AND (document->>'recordCount')::numeric >= $6`+
			` AND (document->'progress'->>'TOTAL_JOBS_IN_FEED')::numeric >= $7`,
		where,
	)
	require.Len(t, args, 6)
	assert.Equal(t, "IN", args[0])
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), args[3])
	assert.Equal(t, int64(2), args[5])
}

func TestBuildWhereEmptyPredicate(t *testing.T) {
	where, args := buildWhere(filter.Predicate{}, 1)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestPostgresStoreSimilaritySearch(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	document, err := json.Marshal(map[string]any{"country_code": "IN", "recordCount": 42})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "embedding_text", "document", "similarity"}).
		AddRow("feed-1", "Feed from IN in INR.", document, 0.91)
	mock.ExpectQuery(`SELECT id, embedding_text, document, 1 - \(embedding <=> \$1\) AS similarity\s+FROM feeds\s+WHERE embedding IS NOT NULL AND document->>'country_code' = \$2`).
		WithArgs(sqlmock.AnyArg(), "IN", 5).
		WillReturnRows(rows)

	predicate := filter.Build(domain.RetrievalCriteria{Query: "q", CountryCode: "IN"})
	hits, err := store.SimilaritySearch(context.Background(), []float32{0.1, 0.2}, predicate, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "feed-1", hits[0].ID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
	assert.Equal(t, json.Number("42"), hits[0].Fields["recordCount"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSimilaritySearchPropagatesErrors(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectQuery("SELECT id").WillReturnError(errors.New("extension vector missing"))

	_, err := store.SimilaritySearch(context.Background(), []float32{0.1}, filter.Predicate{}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity search")
}

func TestPostgresStoreExactQueryOrdersByTimestamp(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	rows := sqlmock.NewRows([]string{"id", "embedding_text", "document"}).
		AddRow("feed-2", "", []byte(`{"status":"completed","timestamp":"2024-02-01T00:00:00Z"}`)).
		AddRow("feed-1", "", []byte(`{"status":"completed","timestamp":"2024-01-01T00:00:00Z"}`))
	mock.ExpectQuery(`FROM feeds\s+WHERE TRUE AND document->>'status' = \$1\s+ORDER BY "timestamp" DESC NULLS LAST\s+LIMIT \$2`).
		WithArgs("completed", 50).
		WillReturnRows(rows)

	predicate := filter.Build(domain.RetrievalCriteria{Query: "q", Status: "completed"})
	documents, err := store.ExactQuery(context.Background(), predicate, 50)
	require.NoError(t, err)
	require.Len(t, documents, 2)
	assert.Equal(t, "feed-2", documents[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSkipsQueryForInvertedRange(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	predicate := filter.Build(domain.RetrievalCriteria{Query: "q", DateFrom: "2024-02-01", DateTo: "2024-01-01"})

	documents, err := store.ExactQuery(context.Background(), predicate, 10)
	require.NoError(t, err)
	assert.Empty(t, documents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsert(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	timestamp := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO feeds")
	mock.ExpectExec("INSERT INTO feeds").
		WithArgs("feed-1", "summary", sqlmock.AnyArg(), timestamp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Insert(context.Background(), []EmbeddedDocument{{
		Document: Document{
			ID:     "feed-1",
			Text:   "summary",
			Fields: map[string]any{"timestamp": timestamp.Format(time.RFC3339)},
		},
		Embedding: []float32{0.5, 0.5},
	}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS feeds .*embedding vector\(1536\)`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background(), 1536))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, store.EnsureSchema(context.Background(), 0))
}
