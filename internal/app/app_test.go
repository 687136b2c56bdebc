package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/checkpoint"
	"github.com/iago/feed-agent-back/internal/config"
	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		LLMBaseURL:       "https://api.openai.com/v1",
		LLMModel:         "gpt-4.1-mini",
		EmbeddingModel:   "text-embedding-3-small",
		DocstoreDriver:   "memory",
		CheckpointDriver: "memory",
	}
}

func TestNewFallsBackToMemoryBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.DocstoreDriver = "postgres"
	cfg.CheckpointDriver = "redis"

	application, err := New(context.Background(), cfg, logging.NewDiscard())
	require.NoError(t, err)
	defer application.Close()

	assert.IsType(t, &docstore.MemoryStore{}, application.Docstore)
	assert.IsType(t, &checkpoint.MemoryStore{}, application.Checkpoints)
	assert.IsType(t, &checkpoint.KeyedMutex{}, application.Locker)
	assert.Nil(t, application.SQLDB())
	assert.Nil(t, application.Redis())
	assert.False(t, application.AIClient.Available())
}

func TestTurnWithoutModelCredentialsIsUnavailable(t *testing.T) {
	application, err := New(context.Background(), memoryConfig(), logging.NewDiscard())
	require.NoError(t, err)
	defer application.Close()

	_, err = application.Chat.Ask(context.Background(), "thread-1", "Show me feeds from India")
	assert.ErrorIs(t, err, agent.ErrReasoningUnavailable)
}

func TestCloseIsIdempotent(t *testing.T) {
	application, err := New(context.Background(), memoryConfig(), logging.NewDiscard())
	require.NoError(t, err)

	application.Close()
	application.Close()
}
