package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/metrics"
	"github.com/iago/feed-agent-back/internal/queue"
	"github.com/iago/feed-agent-back/internal/repository"
	"github.com/iago/feed-agent-back/internal/service"
)

// Processor consumes turn jobs and persists status transitions.
type Processor struct {
	consumer queue.Consumer
	repo     repository.TurnJobsRepository
	runner   service.TurnRunner
	logger   *logrus.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	repo repository.TurnJobsRepository,
	runner service.TurnRunner,
	logger *logrus.Logger,
) *Processor {
	return &Processor{
		consumer: consumer,
		repo:     repo,
		runner:   runner,
		logger:   logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.WithError(err).Error("worker consume loop error")
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	job, err := p.repo.GetJob(ctx, message.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}

	job.Status = domain.JobStatusProcessing
	job.Attempts = message.Attempt + 1
	job.UpdatedAt = time.Now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	result, turnErr := p.runner.RunTurn(ctx, message.ThreadID, message.Query)
	if turnErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = turnErr.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = p.repo.UpdateJob(ctx, job)
		metrics.TurnJobsTotal.WithLabelValues(string(domain.JobStatusFailed)).Inc()
		return turnErr
	}

	encoded, err := service.EncodeTurnResult(result)
	if err != nil {
		return err
	}

	job.Status = domain.JobStatusDone
	job.ErrorMessage = ""
	job.Result = encoded
	job.UpdatedAt = time.Now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	metrics.TurnJobsTotal.WithLabelValues(string(domain.JobStatusDone)).Inc()

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"job_id":    job.ID,
			"thread_id": job.ThreadID,
			"records":   len(result.Records),
		}).Info("turn job processed")
	}

	return nil
}
