package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/spurhq/spurbot/internal/api"
	"github.com/spurhq/spurbot/internal/cache"
	"github.com/spurhq/spurbot/internal/chat"
	"github.com/spurhq/spurbot/internal/config"
	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/llm"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 90 * time.Second // Completion calls can take a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
	startupPingTime   = 5 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting support chat server", "version", Version)

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, startupPingTime)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	store := conversation.NewStore(pool, logger)

	// Redis being down is not fatal: the cache absorbs per-operation
	// failures and reads fall through to PostgreSQL.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, history reads will hit the database", "error", err)
	}
	histCache := cache.New(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second, logger)
	defer func() {
		if closeErr := histCache.Close(); closeErr != nil {
			logger.Warn("closing cache", "error", closeErr)
		}
	}()

	completer, err := llm.NewClient(ctx, llm.Config{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		ModelName:   cfg.ModelName,
		Temperature: cfg.Temperature,
		MaxTokens:   int32(cfg.MaxTokens),
		Timeout:     time.Duration(cfg.CompletionTimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	orch, err := chat.New(chat.Config{
		Log:             store,
		Completer:       completer,
		Cache:           histCache,
		ContextWindow:   cfg.ContextWindow,
		MaxMessageChars: cfg.MaxMessageChars,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Orchestrator: orch,
		Pool:         pool,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"routes", "/history/{sessionId}, /message",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
