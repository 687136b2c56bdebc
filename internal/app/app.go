// Package app assembles the agent from configuration. Both the API server
// and feedctl build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/cache"
	"github.com/iago/feed-agent-back/internal/checkpoint"
	"github.com/iago/feed-agent-back/internal/config"
	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/retrieval"
	"github.com/iago/feed-agent-back/internal/service"
	"github.com/iago/feed-agent-back/internal/tools"
)

// App holds every long-lived component. Close releases the backends.
type App struct {
	Config config.Config
	Logger *logrus.Logger

	AIClient    *ai.OpenAIClient
	ModelRouter *ai.ModelRouter

	Docstore     docstore.ReadWriter
	Checkpoints  checkpoint.Store
	Locker       checkpoint.Locker
	Orchestrator *agent.Orchestrator
	Chat         *service.ChatService

	backends *backends
}

type backends struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	mongo  *mongo.Client
	redis  *redis.Client
	closed bool
}

// New connects the configured backends and wires the agent. Unreachable
// optional backends fall back to in-memory implementations with a warning.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	b := openBackends(ctx, cfg, logger)

	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		ReasoningModel:           cfg.LLMModel,
		ReasoningMaxOutputTokens: cfg.LLMMaxOutputTokens,
		EmbeddingModel:           cfg.EmbeddingModel,
	})
	aiClient := newAIClient(cfg)
	if !aiClient.Available() {
		logger.Warn("LLM_API_KEY not configured, reasoning and similarity search are unavailable")
	}

	store := setupDocstore(cfg, b, logger)
	checkpoints := setupCheckpoints(ctx, cfg, b, logger)
	locker := setupLocker(cfg, b)

	embeddingCache := cache.NewEmbeddingCache(cache.Config{
		TTL:        time.Duration(cfg.EmbeddingCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.EmbeddingCacheMaxEntries,
	})
	embeddingModel := modelRouter.Select(ai.TaskEmbedding).Model
	var embedder ai.Embedder
	if aiClient.Available() {
		embedder = aiClient
	}
	encoder := retrieval.NewQueryEmbedder(embedder, embeddingCache, embeddingModel)
	retriever := retrieval.NewDefaultRetriever(
		store,
		encoder,
		retrieval.NewNormalizer(nil),
		cfg.RetrievalMaxLimit,
		logger,
	)

	feedLookup, err := tools.NewFeedLookupTool(retriever, retrieval.NewContentBuilder(cfg.ToolResultTokenBudget))
	if err != nil {
		b.close(logger)
		return nil, fmt.Errorf("build feed lookup tool: %w", err)
	}
	registry := tools.NewRegistry(logger, feedLookup)

	reasoner := agent.NewModelReasoner(agent.ModelReasonerConfig{
		Client:  aiClient,
		Profile: modelRouter.Select(ai.TaskReasoning),
	})
	orchestrator, err := agent.NewOrchestrator(agent.Config{
		Reasoner:      reasoner,
		Tools:         registry,
		Store:         checkpoints,
		Locker:        locker,
		Logger:        logger,
		MaxIterations: cfg.AgentMaxIterations,
		TurnTimeout:   time.Duration(cfg.AgentTurnTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		b.close(logger)
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		AIClient:     aiClient,
		ModelRouter:  modelRouter,
		Docstore:     store,
		Checkpoints:  checkpoints,
		Locker:       locker,
		Orchestrator: orchestrator,
		Chat:         service.NewChatService(orchestrator, checkpoints),
		backends:     b,
	}, nil
}

// SQLDB is the shared Postgres handle, nil when DATABASE_URL is unset or
// unreachable.
func (a *App) SQLDB() *sql.DB {
	return a.backends.sqlDB
}

// Redis is the shared Redis client, nil when REDIS_ADDR is unset or
// unreachable.
func (a *App) Redis() *redis.Client {
	return a.backends.redis
}

func (a *App) Close() {
	a.backends.close(a.Logger)
}

func newAIClient(cfg config.Config) *ai.OpenAIClient {
	timeout := time.Duration(cfg.LLMTimeoutMS) * time.Millisecond
	if ai.IsOpenRouterURL(cfg.LLMBaseURL) {
		return ai.NewOpenRouterClient(ai.OpenRouterClientConfig{
			APIKey:     cfg.LLMAPIKey,
			BaseURL:    cfg.LLMBaseURL,
			Timeout:    timeout,
			MaxRetries: cfg.EmbeddingMaxRetries,
			SiteURL:    cfg.LLMSiteURL,
			AppName:    cfg.LLMAppName,
		})
	}
	return ai.NewOpenAIClient(ai.OpenAIClientConfig{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Timeout:    timeout,
		MaxRetries: cfg.EmbeddingMaxRetries,
	})
}

func openBackends(ctx context.Context, cfg config.Config, logger *logrus.Logger) *backends {
	b := &backends{}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			logger.WithError(err).Warn("postgres unavailable")
		} else {
			b.pool = pool
			b.sqlDB = stdlib.OpenDBFromPool(pool)
			logger.Info("postgres connected")
		}
	}

	if cfg.MongoURI != "" {
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err != nil {
				_ = client.Disconnect(context.Background())
			}
		}
		if err != nil {
			logger.WithError(err).Warn("mongodb unavailable")
		} else {
			b.mongo = client
			logger.Info("mongodb connected")
		}
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			logger.WithError(err).Warn("redis unavailable")
		} else {
			b.redis = client
			logger.Info("redis connected")
		}
	}

	return b
}

func (b *backends) close(logger *logrus.Logger) {
	if b.closed {
		return
	}
	b.closed = true
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.WithError(err).Warn("close redis")
		}
	}
	if b.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.mongo.Disconnect(ctx); err != nil {
			logger.WithError(err).Warn("close mongodb")
		}
	}
	if b.sqlDB != nil {
		_ = b.sqlDB.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func setupDocstore(cfg config.Config, b *backends, logger *logrus.Logger) docstore.ReadWriter {
	switch cfg.DocstoreDriver {
	case "postgres":
		if b.sqlDB == nil {
			logger.Warn("DOCSTORE_DRIVER=postgres but postgres is unavailable, using in-memory docstore")
			break
		}
		store, err := docstore.NewPostgresStore(b.sqlDB, cfg.FeedsTable)
		if err != nil {
			logger.WithError(err).Warn("postgres docstore rejected, using in-memory docstore")
			break
		}
		logger.WithField("table", cfg.FeedsTable).Info("postgres docstore initialized")
		return store
	case "mongo", "mongodb":
		if b.mongo == nil {
			logger.Warn("DOCSTORE_DRIVER=mongo but mongodb is unavailable, using in-memory docstore")
			break
		}
		store, err := docstore.NewMongoStore(b.mongo, docstore.MongoConfig{
			Database:    cfg.MongoDatabase,
			Collection:  cfg.MongoFeedsCollection,
			VectorIndex: cfg.MongoVectorIndex,
		})
		if err != nil {
			logger.WithError(err).Warn("mongo docstore rejected, using in-memory docstore")
			break
		}
		logger.WithField("collection", cfg.MongoFeedsCollection).Info("mongodb docstore initialized")
		return store
	case "", "memory":
	default:
		logger.WithField("driver", cfg.DocstoreDriver).Warn("unknown DOCSTORE_DRIVER, using in-memory docstore")
	}
	return docstore.NewMemoryStore()
}

func setupCheckpoints(ctx context.Context, cfg config.Config, b *backends, logger *logrus.Logger) checkpoint.Store {
	switch cfg.CheckpointDriver {
	case "redis":
		if b.redis == nil {
			logger.Warn("CHECKPOINT_DRIVER=redis but redis is unavailable, using in-memory checkpoints")
			break
		}
		logger.Info("redis checkpoint store initialized")
		return checkpoint.NewRedisStore(b.redis, checkpoint.RedisConfig{
			Prefix: cfg.RedisCheckpointPrefix,
			TTL:    time.Duration(cfg.RedisCheckpointTTLSec) * time.Second,
		})
	case "postgres":
		if b.sqlDB == nil {
			logger.Warn("CHECKPOINT_DRIVER=postgres but postgres is unavailable, using in-memory checkpoints")
			break
		}
		store, err := checkpoint.NewPostgresStore(b.sqlDB, cfg.CheckpointsTable)
		if err == nil {
			err = store.EnsureSchema(ctx)
		}
		if err != nil {
			logger.WithError(err).Warn("postgres checkpoint store failed, using in-memory checkpoints")
			break
		}
		logger.Info("postgres checkpoint store initialized")
		return store
	case "mongo", "mongodb":
		if b.mongo == nil {
			logger.Warn("CHECKPOINT_DRIVER=mongo but mongodb is unavailable, using in-memory checkpoints")
			break
		}
		store, err := checkpoint.NewMongoStore(b.mongo.Database(cfg.MongoDatabase).Collection(cfg.MongoCheckpointCollection))
		if err != nil {
			logger.WithError(err).Warn("mongo checkpoint store rejected, using in-memory checkpoints")
			break
		}
		logger.Info("mongodb checkpoint store initialized")
		return store
	case "", "memory":
	default:
		logger.WithField("driver", cfg.CheckpointDriver).Warn("unknown CHECKPOINT_DRIVER, using in-memory checkpoints")
	}
	return checkpoint.NewMemoryStore()
}

// setupLocker serializes turns across processes when Redis is available.
func setupLocker(cfg config.Config, b *backends) checkpoint.Locker {
	if b.redis != nil {
		turnTimeout := time.Duration(cfg.AgentTurnTimeoutMS) * time.Millisecond
		return checkpoint.NewRedisLocker(b.redis, checkpoint.RedisLockerConfig{TTL: checkpoint.LeaseFor(turnTimeout)})
	}
	return checkpoint.NewKeyedMutex()
}
