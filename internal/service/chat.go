package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/checkpoint"
	"github.com/iago/feed-agent-back/internal/domain"
)

const MaxQueryLength = 1000

var (
	ErrInvalidQuery   = fmt.Errorf("query must be between 1 and %d characters", MaxQueryLength)
	ErrThreadNotFound = errors.New("thread not found")
)

// TurnRunner runs one conversational turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, threadID, query string) (agent.TurnResult, error)
}

// FeedFilters are structured filters a caller can attach to a question.
// They are folded into the message text; the model still chooses the tool
// arguments.
type FeedFilters struct {
	CountryCode           string `json:"country_code,omitempty"`
	CurrencyCode          string `json:"currency_code,omitempty"`
	Status                string `json:"status,omitempty"`
	TransactionSourceName string `json:"transactionSourceName,omitempty"`
	DateFrom              string `json:"date_from,omitempty"`
	DateTo                string `json:"date_to,omitempty"`
	MinRecords            int64  `json:"min_records,omitempty"`
	MinJobs               int64  `json:"min_jobs,omitempty"`
}

type ChatService struct {
	runner TurnRunner
	store  checkpoint.Store
}

func NewChatService(runner TurnRunner, store checkpoint.Store) *ChatService {
	return &ChatService{runner: runner, store: store}
}

// Ask runs a turn on threadID, starting a new thread when it is empty.
func (s *ChatService) Ask(ctx context.Context, threadID, query string) (agent.TurnResult, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return agent.TurnResult{}, err
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}
	return s.runner.RunTurn(ctx, threadID, query)
}

// AskFiltered folds filters into the question and runs it.
func (s *ChatService) AskFiltered(
	ctx context.Context,
	threadID string,
	query string,
	filters FeedFilters,
) (agent.TurnResult, error) {
	if _, err := ValidateQuery(query); err != nil {
		return agent.TurnResult{}, err
	}
	return s.Ask(ctx, threadID, FoldFilters(query, filters))
}

func (s *ChatService) History(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrThreadNotFound
	}
	state, err := s.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrCheckpointUnavailable, err)
	}
	if state == nil {
		return nil, ErrThreadNotFound
	}
	return state, nil
}

func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	length := utf8.RuneCountInString(trimmed)
	if length == 0 || length > MaxQueryLength {
		return "", ErrInvalidQuery
	}
	return trimmed, nil
}

// FoldFilters appends a natural-language description of filters to query.
func FoldFilters(query string, filters FeedFilters) string {
	parts := make([]string, 0, 8)
	if value := strings.TrimSpace(filters.CountryCode); value != "" {
		parts = append(parts, "country code "+value)
	}
	if value := strings.TrimSpace(filters.CurrencyCode); value != "" {
		parts = append(parts, "currency code "+value)
	}
	if value := strings.TrimSpace(filters.Status); value != "" {
		parts = append(parts, "status "+value)
	}
	if value := strings.TrimSpace(filters.TransactionSourceName); value != "" {
		parts = append(parts, "transaction source "+value)
	}

	from := strings.TrimSpace(filters.DateFrom)
	to := strings.TrimSpace(filters.DateTo)
	switch {
	case from != "" && to != "":
		parts = append(parts, fmt.Sprintf("date range from %s to %s", from, to))
	case from != "":
		parts = append(parts, "date from "+from)
	case to != "":
		parts = append(parts, "date until "+to)
	}

	if filters.MinRecords > 0 {
		parts = append(parts, fmt.Sprintf("minimum %d records", filters.MinRecords))
	}
	if filters.MinJobs > 0 {
		parts = append(parts, fmt.Sprintf("minimum %d jobs", filters.MinJobs))
	}

	query = strings.TrimSpace(query)
	if len(parts) == 0 {
		return query
	}
	return query + " with the following filters: " + strings.Join(parts, ", ")
}
