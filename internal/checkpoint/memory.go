package checkpoint

import (
	"context"
	"sync"

	"github.com/iago/feed-agent-back/internal/domain"
)

// MemoryStore keeps state in process for local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*domain.ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*domain.ConversationState)}
}

func (s *MemoryStore) Load(_ context.Context, threadID string) (*domain.ConversationState, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[threadID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state *domain.ConversationState) error {
	if state == nil {
		return ErrThreadIDRequired
	}
	if err := validateThreadID(state.ThreadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.ThreadID] = state.Clone()
	return nil
}
