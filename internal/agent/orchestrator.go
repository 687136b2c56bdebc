package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/checkpoint"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/metrics"
	"github.com/iago/feed-agent-back/internal/policy"
	"github.com/iago/feed-agent-back/internal/retrieval"
	"github.com/iago/feed-agent-back/internal/tools"
)

const (
	DefaultMaxIterations = 15
	DefaultTurnTimeout   = 90 * time.Second

	FinalAnswerSentinel = "FINAL ANSWER"

	saveTimeout = 5 * time.Second
)

var (
	ErrRecursionExceeded     = errors.New("reasoning iteration ceiling exceeded")
	ErrReasoningUnavailable  = errors.New("reasoning step unavailable")
	ErrCheckpointUnavailable = errors.New("conversation state unavailable")
	ErrInvalidTurn           = errors.New("thread id and query are required")
)

var sentinelPattern = regexp.MustCompile(`(?i)^\s*FINAL ANSWER\s*[:\-]?\s*`)

// ToolExecutor is the slice of the tool registry the loop depends on.
type ToolExecutor interface {
	Definitions() []ai.ToolDefinition
	Execute(ctx context.Context, call domain.ToolCall) tools.Result
}

type Config struct {
	Reasoner      Reasoner
	Tools         ToolExecutor
	Store         checkpoint.Store
	Locker        checkpoint.Locker
	Logger        *logrus.Logger
	MaxIterations int
	TurnTimeout   time.Duration
	Now           func() time.Time
}

// TurnResult is the outcome of one successful turn. Records is the thread's
// full accumulated list; TurnRecords holds only what this turn retrieved.
type TurnResult struct {
	ThreadID    string          `json:"thread_id"`
	Text        string          `json:"text"`
	Records     []domain.Record `json:"records"`
	TurnRecords []domain.Record `json:"-"`
	Iterations  int             `json:"-"`
	Persisted   bool            `json:"-"`
}

// Orchestrator runs the reasoning and tool execution cycle for one turn.
type Orchestrator struct {
	reasoner      Reasoner
	tools         ToolExecutor
	store         checkpoint.Store
	locker        checkpoint.Locker
	logger        *logrus.Logger
	maxIterations int
	turnTimeout   time.Duration
	now           func() time.Time
}

func NewOrchestrator(config Config) (*Orchestrator, error) {
	if config.Reasoner == nil {
		return nil, errors.New("reasoner is required")
	}
	if config.Tools == nil {
		return nil, errors.New("tool executor is required")
	}
	if config.Store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if config.Locker == nil {
		config.Locker = checkpoint.NewKeyedMutex()
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
		config.Logger.SetOutput(io.Discard)
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = DefaultTurnTimeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Orchestrator{
		reasoner:      config.Reasoner,
		tools:         config.Tools,
		store:         config.Store,
		locker:        config.Locker,
		logger:        config.Logger,
		maxIterations: config.MaxIterations,
		turnTimeout:   config.TurnTimeout,
		now:           config.Now,
	}, nil
}

// RunTurn appends query to the thread, cycles between reasoning and tool
// execution until the model answers, and persists the resulting state.
// An aborted turn leaves the stored state untouched.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID, query string) (TurnResult, error) {
	threadID = strings.TrimSpace(threadID)
	query = strings.TrimSpace(query)
	if threadID == "" || query == "" {
		return TurnResult{}, ErrInvalidTurn
	}

	startedAt := time.Now()
	entry := o.logger.WithField("thread_id", threadID)

	result, err := o.runTurn(ctx, threadID, query, entry)
	outcome := turnOutcome(err)
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(startedAt).Seconds())

	if err != nil {
		entry.WithError(err).WithField("outcome", outcome).Warn("turn aborted")
		return TurnResult{}, err
	}
	entry.WithFields(logrus.Fields{
		"query":      policy.LogPreview(query, 120),
		"iterations": result.Iterations,
		"records":    len(result.TurnRecords),
		"persisted":  result.Persisted,
	}).Info("turn completed")
	return result, nil
}

func (o *Orchestrator) runTurn(
	ctx context.Context,
	threadID string,
	query string,
	entry *logrus.Entry,
) (TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	release, err := o.locker.Lock(ctx, threadID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("%w: lock thread: %w", ErrCheckpointUnavailable, err)
	}
	defer release()

	stored, err := o.store.Load(ctx, threadID)
	if err != nil {
		metrics.CheckpointOpsTotal.WithLabelValues("load", "error").Inc()
		return TurnResult{}, fmt.Errorf("%w: %w", ErrCheckpointUnavailable, err)
	}
	metrics.CheckpointOpsTotal.WithLabelValues("load", "ok").Inc()
	if stored == nil {
		stored = domain.NewConversationState(threadID)
	}

	state := stored.Clone()
	state.AppendMessages(domain.Message{Role: domain.RoleUser, Content: query, CreatedAt: o.now().UTC()})

	definitions := o.tools.Definitions()
	turnRecords := make([]domain.Record, 0)
	iterations := 0

	for {
		if iterations >= o.maxIterations {
			return TurnResult{}, fmt.Errorf("%w: %d reasoning steps", ErrRecursionExceeded, o.maxIterations)
		}
		if err := ctx.Err(); err != nil {
			return TurnResult{}, fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
		}
		iterations++

		decision, err := o.reasoner.Decide(ctx, state.Messages, definitions)
		if err != nil {
			return TurnResult{}, fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
		}

		switch typed := decision.(type) {
		case ToolCalls:
			if len(typed.Calls) == 0 {
				return o.finish(ctx, state, typed.Text, turnRecords, iterations, entry), nil
			}
			state.AppendMessages(domain.Message{
				Role:      domain.RoleAssistant,
				Content:   typed.Text,
				ToolCalls: typed.Calls,
				CreatedAt: o.now().UTC(),
			})
			for _, call := range typed.Calls {
				result := o.tools.Execute(ctx, call)
				message := result.Message()
				message.CreatedAt = o.now().UTC()
				state.AppendMessages(message)
				state.AppendRecords(result.Records...)
				turnRecords = append(turnRecords, result.Records...)
			}
		case FinalAnswer:
			return o.finish(ctx, state, typed.Text, turnRecords, iterations, entry), nil
		default:
			return TurnResult{}, fmt.Errorf("%w: unexpected decision %T", ErrReasoningUnavailable, decision)
		}
	}
}

func (o *Orchestrator) finish(
	ctx context.Context,
	state *domain.ConversationState,
	rawText string,
	turnRecords []domain.Record,
	iterations int,
	entry *logrus.Entry,
) TurnResult {
	text := StripSentinel(rawText)
	if text == "" {
		text = fallbackAnswer(turnRecords)
	}

	now := o.now().UTC()
	state.AppendMessages(domain.Message{Role: domain.RoleAssistant, Content: text, CreatedAt: now})
	state.Turns++
	state.UpdatedAt = now

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	persisted := true
	if err := o.store.Save(saveCtx, state); err != nil {
		persisted = false
		metrics.CheckpointOpsTotal.WithLabelValues("save", "error").Inc()
		entry.WithError(err).Error("checkpoint save failed")
	} else {
		metrics.CheckpointOpsTotal.WithLabelValues("save", "ok").Inc()
	}

	return TurnResult{
		ThreadID:    state.ThreadID,
		Text:        text,
		Records:     append([]domain.Record(nil), state.Records...),
		TurnRecords: turnRecords,
		Iterations:  iterations,
		Persisted:   persisted,
	}
}

// StripSentinel removes a leading FINAL ANSWER marker and surrounding space.
func StripSentinel(text string) string {
	return strings.TrimSpace(sentinelPattern.ReplaceAllString(text, ""))
}

func fallbackAnswer(turnRecords []domain.Record) string {
	if len(turnRecords) == 0 {
		return retrieval.NoDataMessage
	}
	return fmt.Sprintf("Found %d matching feed records.", len(turnRecords))
}

func turnOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRecursionExceeded):
		return "recursion_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrReasoningUnavailable):
		return "reasoning_unavailable"
	case errors.Is(err, ErrCheckpointUnavailable):
		return "state_unavailable"
	default:
		return "invalid"
	}
}
