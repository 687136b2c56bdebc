package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/iago/feed-agent-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// TurnJobsRepository abstracts async turn job persistence.
type TurnJobsRepository interface {
	CreateJob(ctx context.Context, job *domain.TurnJob) error
	UpdateJob(ctx context.Context, job *domain.TurnJob) error
	GetJob(ctx context.Context, jobID string) (*domain.TurnJob, error)
}

// MemoryTurnJobsRepository stores jobs in memory for local development.
type MemoryTurnJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.TurnJob
}

func NewMemoryTurnJobsRepository() *MemoryTurnJobsRepository {
	return &MemoryTurnJobsRepository{
		jobs: make(map[string]*domain.TurnJob),
	}
}

func (r *MemoryTurnJobsRepository) CreateJob(_ context.Context, job *domain.TurnJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryTurnJobsRepository) UpdateJob(_ context.Context, job *domain.TurnJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryTurnJobsRepository) GetJob(_ context.Context, jobID string) (*domain.TurnJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func cloneJob(job *domain.TurnJob) *domain.TurnJob {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Result != nil {
		clone.Result = append(json.RawMessage(nil), job.Result...)
	}
	return &clone
}
