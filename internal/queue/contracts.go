package queue

import (
	"context"

	"github.com/iago/feed-agent-back/internal/domain"
)

// Producer sends turn jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives turn jobs and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
