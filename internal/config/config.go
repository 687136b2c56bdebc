package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API, worker and CLI.
type Config struct {
	Port string

	AuthToken          string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	TrustProxyHeaders  bool

	LogLevel string

	LLMAPIKey                string
	LLMBaseURL               string
	LLMModel                 string
	LLMMaxOutputTokens       int
	LLMTimeoutMS             int
	LLMSiteURL               string
	LLMAppName               string
	EmbeddingModel           string
	EmbeddingDimensions      int
	EmbeddingMaxRetries      int
	EmbeddingCacheTTLSeconds int
	EmbeddingCacheMaxEntries int

	DocstoreDriver   string
	CheckpointDriver string

	DatabaseURL      string
	FeedsTable       string
	CheckpointsTable string

	MongoURI                  string
	MongoDatabase             string
	MongoFeedsCollection      string
	MongoVectorIndex          string
	MongoCheckpointCollection string

	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisCheckpointPrefix string
	RedisCheckpointTTLSec int
	RedisStream           string
	RedisDLQ              string
	RedisGroup            string
	RedisConsumer         string

	AgentMaxIterations    int
	AgentTurnTimeoutMS    int
	RetrievalMaxLimit     int
	ToolResultTokenBudget int

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken:          getEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		TrustProxyHeaders:  getEnvBool("TRUST_PROXY_HEADERS", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		LLMAPIKey:                getEnv("LLM_API_KEY", ""),
		LLMBaseURL:               getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:                 getEnv("LLM_MODEL", "gpt-4.1-mini"),
		LLMMaxOutputTokens:       getEnvInt("LLM_MAX_OUTPUT_TOKENS", 1024),
		LLMTimeoutMS:             getEnvInt("LLM_TIMEOUT_MS", 30000),
		LLMSiteURL:               getEnv("LLM_SITE_URL", ""),
		LLMAppName:               getEnv("LLM_APP_NAME", "Feed Agent"),
		EmbeddingModel:           getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions:      getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		EmbeddingMaxRetries:      getEnvInt("EMBEDDING_MAX_RETRIES", 2),
		EmbeddingCacheTTLSeconds: getEnvInt("EMBEDDING_CACHE_TTL_SECONDS", 900),
		EmbeddingCacheMaxEntries: getEnvInt("EMBEDDING_CACHE_MAX_ENTRIES", 2000),

		DocstoreDriver:   strings.ToLower(getEnv("DOCSTORE_DRIVER", "memory")),
		CheckpointDriver: strings.ToLower(getEnv("CHECKPOINT_DRIVER", "memory")),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		FeedsTable:       getEnv("FEEDS_TABLE", "feeds"),
		CheckpointsTable: getEnv("CHECKPOINTS_TABLE", "conversation_checkpoints"),

		MongoURI:                  getEnv("MONGODB_URI", ""),
		MongoDatabase:             getEnv("MONGODB_DATABASE", "myDatabase"),
		MongoFeedsCollection:      getEnv("MONGODB_FEEDS_COLLECTION", "feeds embedded"),
		MongoVectorIndex:          getEnv("MONGODB_VECTOR_INDEX", "vector_index"),
		MongoCheckpointCollection: getEnv("MONGODB_CHECKPOINT_COLLECTION", "checkpoints"),

		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RedisCheckpointPrefix: getEnv("REDIS_CHECKPOINT_PREFIX", "feed_agent:checkpoint:"),
		RedisCheckpointTTLSec: getEnvInt("REDIS_CHECKPOINT_TTL_SECONDS", 0),
		RedisStream:           getEnv("REDIS_STREAM", "feed_agent_turns"),
		RedisDLQ:              getEnv("REDIS_DLQ_STREAM", "feed_agent_turns_dlq"),
		RedisGroup:            getEnv("REDIS_GROUP", "feed_agent_workers"),
		RedisConsumer:         getEnv("REDIS_CONSUMER", "api-1"),

		AgentMaxIterations:    getEnvInt("AGENT_MAX_ITERATIONS", 15),
		AgentTurnTimeoutMS:    getEnvInt("AGENT_TURN_TIMEOUT_MS", 90000),
		RetrievalMaxLimit:     getEnvInt("RETRIEVAL_MAX_LIMIT", 200),
		ToolResultTokenBudget: getEnvInt("TOOL_RESULT_TOKEN_BUDGET", 3000),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
