package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/iago/feed-agent-back/internal/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore keeps one JSONB row per thread:
//
//	CREATE TABLE conversation_checkpoints (
//	  thread_id  TEXT PRIMARY KEY,
//	  state      JSONB NOT NULL,
//	  turns      INTEGER NOT NULL DEFAULT 0,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db    *sql.DB
	table string
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("postgres db is required")
	}
	if table == "" {
		table = "conversation_checkpoints"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid checkpoint table name %q", table)
	}
	return &PostgresStore{db: db, table: table}, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		thread_id TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		turns INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT state FROM %s WHERE thread_id = $1`, s.table)

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint: %w", err)
	}
	return decodeState(raw)
}

func (s *PostgresStore) Save(ctx context.Context, state *domain.ConversationState) error {
	encoded, err := encodeState(state)
	if err != nil {
		return err
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`INSERT INTO %s (thread_id, state, turns, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (thread_id) DO UPDATE SET
			state = EXCLUDED.state,
			turns = EXCLUDED.turns,
			updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.db.ExecContext(ctx, query, state.ThreadID, string(encoded), state.Turns, updatedAt); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}
