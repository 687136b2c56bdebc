package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/metrics"
	"github.com/iago/feed-agent-back/internal/queue"
	"github.com/iago/feed-agent-back/internal/repository"
)

type TurnJobsService struct {
	repo     repository.TurnJobsRepository
	producer queue.Producer
}

func NewTurnJobsService(repo repository.TurnJobsRepository, producer queue.Producer) *TurnJobsService {
	return &TurnJobsService{repo: repo, producer: producer}
}

// Enqueue records a pending turn job and hands it to the queue.
func (s *TurnJobsService) Enqueue(ctx context.Context, threadID, query string) (*domain.TurnJob, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	now := time.Now().UTC()
	job := &domain.TurnJob{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Query:     query,
		Status:    domain.JobStatusPending,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	message := domain.QueueMessage{
		JobID:       job.ID,
		ThreadID:    threadID,
		Query:       query,
		Attempt:     0,
		RequestedAt: now,
	}

	if err := s.producer.Enqueue(ctx, message); err != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = err.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = s.repo.UpdateJob(ctx, job)
		metrics.TurnJobsTotal.WithLabelValues(string(domain.JobStatusFailed)).Inc()
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.TurnJobsTotal.WithLabelValues(string(domain.JobStatusPending)).Inc()
	return job, nil
}

func (s *TurnJobsService) GetJob(ctx context.Context, jobID string) (*domain.TurnJob, error) {
	return s.repo.GetJob(ctx, jobID)
}

// EncodeTurnResult is the JSON stored as a finished job's result.
func EncodeTurnResult(result agent.TurnResult) (json.RawMessage, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode turn result: %w", err)
	}
	return encoded, nil
}
