package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iago/feed-agent-back/internal/domain"
)

var ErrThreadIDRequired = errors.New("thread id is required")

// Store persists conversation state per thread. Load returns nil, nil when
// the thread has never been saved. Implementations are safe for concurrent
// use; concurrent saves of one thread are last-writer-wins.
type Store interface {
	Load(ctx context.Context, threadID string) (*domain.ConversationState, error)
	Save(ctx context.Context, state *domain.ConversationState) error
}

func validateThreadID(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrThreadIDRequired
	}
	return nil
}

func encodeState(state *domain.ConversationState) ([]byte, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	if err := validateThreadID(state.ThreadID); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return encoded, nil
}

func decodeState(raw []byte) (*domain.ConversationState, error) {
	state := &domain.ConversationState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if state.Messages == nil {
		state.Messages = make([]domain.Message, 0)
	}
	if state.Records == nil {
		state.Records = make([]domain.Record, 0)
	}
	return state, nil
}
