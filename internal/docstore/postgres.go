package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore reads feeds from a pgvector-enabled table:
//
//	id TEXT PRIMARY KEY
//	embedding_text TEXT
//	document JSONB          -- feed fields as stored in the source collection
//	"timestamp" TIMESTAMPTZ -- copy of document.timestamp for range scans
//	embedding vector(N)
type PostgresStore struct {
	db    *sql.DB
	table string
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = "feeds"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid feeds table name %q", table)
	}
	return &PostgresStore{db: db, table: table}, nil
}

// EnsureSchema creates the vector extension and feeds table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions %d", dimensions)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding_text TEXT NOT NULL DEFAULT '',
			document JSONB NOT NULL,
			"timestamp" TIMESTAMPTZ,
			embedding vector(%d)
		)
	`, s.table, dimensions))
	if err != nil {
		return fmt.Errorf("create feeds table: %w", err)
	}
	return nil
}

func (s *PostgresStore) SimilaritySearch(
	ctx context.Context,
	embedding []float32,
	predicate filter.Predicate,
	n int,
) ([]ScoredDocument, error) {
	if len(embedding) == 0 {
		return nil, ErrInvalidEmbedding
	}
	if predicate.Unsatisfiable() {
		return []ScoredDocument{}, nil
	}

	where, args := buildWhere(predicate, 2)
	query := fmt.Sprintf(`
		SELECT id, embedding_text, document, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, s.table, where, len(args)+2)

	queryArgs := append([]any{pgvector.NewVector(embedding)}, args...)
	queryArgs = append(queryArgs, n)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredDocument, 0)
	for rows.Next() {
		var (
			hit      ScoredDocument
			document []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &document, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan similarity hit: %w", err)
		}
		hit.Fields, err = decodeDocument(document)
		if err != nil {
			return nil, err
		}
		results = append(results, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity hits: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) ExactQuery(ctx context.Context, predicate filter.Predicate, n int) ([]Document, error) {
	if predicate.Unsatisfiable() {
		return []Document{}, nil
	}

	where, args := buildWhere(predicate, 1)
	query := fmt.Sprintf(`
		SELECT id, embedding_text, document
		FROM %s
		WHERE TRUE%s
		ORDER BY "timestamp" DESC NULLS LAST
		LIMIT $%d
	`, s.table, where, len(args)+1)

	rows, err := s.db.QueryContext(ctx, query, append(args, n)...)
	if err != nil {
		return nil, fmt.Errorf("exact query: %w", err)
	}
	defer rows.Close()

	results := make([]Document, 0)
	for rows.Next() {
		var (
			item     Document
			document []byte
		)
		if err := rows.Scan(&item.ID, &item.Text, &document); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		item.Fields, err = decodeDocument(document)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) Insert(ctx context.Context, documents []EmbeddedDocument) error {
	if len(documents) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding_text, document, "timestamp", embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET embedding_text = EXCLUDED.embedding_text,
			document = EXCLUDED.document,
			"timestamp" = EXCLUDED."timestamp",
			embedding = EXCLUDED.embedding
	`, s.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, document := range documents {
		id := document.ID
		if id == "" {
			id = uuid.NewString()
		}
		encoded, err := json.Marshal(document.Fields)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", id, err)
		}

		var timestamp any
		if value, ok := domain.Lookup(document.Fields, domain.FieldTimestamp); ok {
			if parsed, ok := domain.AsTime(value); ok {
				timestamp = parsed
			}
		}
		var embedding any
		if len(document.Embedding) > 0 {
			embedding = pgvector.NewVector(document.Embedding)
		}

		if _, err := stmt.ExecContext(ctx, id, document.Text, encoded, timestamp, embedding); err != nil {
			return fmt.Errorf("insert document %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// buildWhere renders the predicate as " AND ..." clauses with placeholders
// numbered from firstArg.
func buildWhere(predicate filter.Predicate, firstArg int) (string, []any) {
	query := strings.Builder{}
	args := make([]any, 0, len(predicate.Equals)+len(predicate.Minimums)+2)
	argIndex := firstArg

	for _, equality := range predicate.Equals {
		query.WriteString(fmt.Sprintf(" AND %s = $%d", jsonTextPath(equality.Field), argIndex))
		args = append(args, equality.Value)
		argIndex++
	}

	if predicate.Range != nil {
		column := `"timestamp"`
		if predicate.Range.Field != domain.FieldTimestamp {
			column = "(" + jsonTextPath(predicate.Range.Field) + ")::timestamptz"
		}
		if predicate.Range.From != nil {
			query.WriteString(fmt.Sprintf(" AND %s >= $%d", column, argIndex))
			args = append(args, *predicate.Range.From)
			argIndex++
		}
		if predicate.Range.To != nil {
			query.WriteString(fmt.Sprintf(" AND %s <= $%d", column, argIndex))
			args = append(args, *predicate.Range.To)
			argIndex++
		}
	}

	for _, minimum := range predicate.Minimums {
		query.WriteString(fmt.Sprintf(" AND (%s)::numeric >= $%d", jsonTextPath(minimum.Field), argIndex))
		args = append(args, minimum.Value)
		argIndex++
	}

	return query.String(), args
}

// jsonTextPath maps "progress.TOTAL_JOBS_IN_FEED" to
// document->'progress'->>'TOTAL_JOBS_IN_FEED'.
func jsonTextPath(field string) string {
	parts := strings.Split(field, ".")
	path := strings.Builder{}
	path.WriteString("document")
	for index, part := range parts {
		operator := "->"
		if index == len(parts)-1 {
			operator = "->>"
		}
		path.WriteString(operator)
		path.WriteString("'" + strings.ReplaceAll(part, "'", "''") + "'")
	}
	return path.String()
}

func decodeDocument(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(raw) == 0 {
		return fields, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
