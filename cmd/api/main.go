package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/app"
	"github.com/iago/feed-agent-back/internal/config"
	httpserver "github.com/iago/feed-agent-back/internal/http"
	"github.com/iago/feed-agent-back/internal/http/handlers"
	"github.com/iago/feed-agent-back/internal/logging"
	"github.com/iago/feed-agent-back/internal/queue"
	"github.com/iago/feed-agent-back/internal/repository"
	"github.com/iago/feed-agent-back/internal/service"
	"github.com/iago/feed-agent-back/internal/worker"
)

func main() {
	dotenvErr := config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()
	logger := logging.New("feed-agent-back", cfg.LogLevel)
	if dotenvErr != nil {
		logger.WithError(dotenvErr).Warn("failed loading .env files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to build application")
		os.Exit(1)
	}
	defer application.Close()

	repo := setupRepository(ctx, application, logger)
	producer, consumer := setupQueue(ctx, application, logger)

	turnJobsService := service.NewTurnJobsService(repo, producer)
	api := handlers.NewAPI(application.Chat, turnJobsService, logger)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:               api,
		Logger:            logger,
		AuthToken:         cfg.AuthToken,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(consumer, repo, application.Orchestrator, logger)
		go processor.Start(ctx)
		logger.Info("worker enabled and started")
	} else {
		logger.Info("worker disabled by configuration")
	}

	writeTimeout := time.Duration(cfg.AgentTurnTimeoutMS)*time.Millisecond + 15*time.Second
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("api listening")
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

func setupRepository(
	ctx context.Context,
	application *app.App,
	logger *logrus.Logger,
) repository.TurnJobsRepository {
	db := application.SQLDB()
	if db == nil {
		logger.Info("postgres not configured, using in-memory turn jobs repository")
		return repository.NewMemoryTurnJobsRepository()
	}

	pgRepo := repository.NewPostgresTurnJobsRepository(db)
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Warn("failed to initialize postgres repository, fallback to memory")
		return repository.NewMemoryTurnJobsRepository()
	}
	logger.Info("postgres turn jobs repository initialized")
	return pgRepo
}

func setupQueue(
	ctx context.Context,
	application *app.App,
	logger *logrus.Logger,
) (queue.Producer, queue.Consumer) {
	cfg := application.Config
	client := application.Redis()
	if client == nil {
		logger.Info("redis not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local
	}

	streams, err := queue.NewStreamsQueueWithClient(ctx, client, queue.StreamsConfig{
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to initialize redis streams queue, fallback to local")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local
	}
	logger.WithField("stream", cfg.RedisStream).Info("redis streams queue initialized")
	return streams, streams
}
