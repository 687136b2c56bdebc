package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iago/feed-agent-back/internal/domain"
)

// PostgresTurnJobsRepository keeps turn jobs in the turn_jobs table.
type PostgresTurnJobsRepository struct {
	db *sql.DB
}

func NewPostgresTurnJobsRepository(db *sql.DB) *PostgresTurnJobsRepository {
	return &PostgresTurnJobsRepository{db: db}
}

func (r *PostgresTurnJobsRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS turn_jobs (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			result JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create turn_jobs table: %w", err)
	}
	return nil
}

func (r *PostgresTurnJobsRepository) CreateJob(ctx context.Context, job *domain.TurnJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO turn_jobs (
			id,
			thread_id,
			query,
			status,
			result,
			error_message,
			attempts,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		job.ID,
		job.ThreadID,
		job.Query,
		string(job.Status),
		nullableJSON(job.Result),
		job.ErrorMessage,
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn job: %w", err)
	}
	return nil
}

func (r *PostgresTurnJobsRepository) UpdateJob(ctx context.Context, job *domain.TurnJob) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE turn_jobs
		SET status = $2,
			result = $3,
			error_message = $4,
			attempts = $5,
			updated_at = $6
		WHERE id = $1
	`, job.ID, string(job.Status), nullableJSON(job.Result), job.ErrorMessage, job.Attempts, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update turn job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update turn job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTurnJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.TurnJob, error) {
	var (
		job    domain.TurnJob
		status string
		result []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, thread_id, query, status, result, error_message, attempts, created_at, updated_at
		FROM turn_jobs
		WHERE id = $1
	`, jobID).Scan(
		&job.ID,
		&job.ThreadID,
		&job.Query,
		&status,
		&result,
		&job.ErrorMessage,
		&job.Attempts,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query turn job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return &job, nil
}

func nullableJSON(value json.RawMessage) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}
