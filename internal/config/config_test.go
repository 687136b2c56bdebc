package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AGENT_MAX_ITERATIONS", "AGENT_TURN_TIMEOUT_MS", "DOCSTORE_DRIVER", "REDIS_STREAM"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15, cfg.AgentMaxIterations)
	assert.Equal(t, 90000, cfg.AgentTurnTimeoutMS)
	assert.Equal(t, "memory", cfg.DocstoreDriver)
	assert.Equal(t, "feed_agent_turns", cfg.RedisStream)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "4")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("CHECKPOINT_DRIVER", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RETRIEVAL_MAX_LIMIT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 4, cfg.AgentMaxIterations)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.False(t, cfg.WorkerEnabled)
	assert.Equal(t, "redis", cfg.CheckpointDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 200, cfg.RetrievalMaxLimit)
}

func TestLoadDotEnvKeepsProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, ".env")
	second := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(first, []byte("FEEDCTL_TEST_A=from-file\nFEEDCTL_TEST_B=\"quoted value\"\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("FEEDCTL_TEST_B=second\nFEEDCTL_TEST_C=third # comment\n"), 0o600))

	t.Setenv("FEEDCTL_TEST_A", "from-process")
	t.Setenv("FEEDCTL_TEST_B", "")
	t.Setenv("FEEDCTL_TEST_C", "")
	require.NoError(t, os.Unsetenv("FEEDCTL_TEST_B"))
	require.NoError(t, os.Unsetenv("FEEDCTL_TEST_C"))

	require.NoError(t, LoadDotEnv(first, filepath.Join(dir, "missing.env"), second))

	assert.Equal(t, "from-process", os.Getenv("FEEDCTL_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("FEEDCTL_TEST_B"))
	assert.Equal(t, "third", os.Getenv("FEEDCTL_TEST_C"))
}
