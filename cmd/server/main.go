package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/pinggolf/inventory-chat-core/internal/alerts"
	"github.com/pinggolf/inventory-chat-core/internal/api"
	"github.com/pinggolf/inventory-chat-core/internal/auth"
	"github.com/pinggolf/inventory-chat-core/internal/chatcore/ragstore"
	"github.com/pinggolf/inventory-chat-core/internal/clock"
	"github.com/pinggolf/inventory-chat-core/internal/config"
	"github.com/pinggolf/inventory-chat-core/internal/db"
	"github.com/pinggolf/inventory-chat-core/internal/idemstore"
	"github.com/pinggolf/inventory-chat-core/internal/llm"
	"github.com/pinggolf/inventory-chat-core/internal/logging"
	"github.com/pinggolf/inventory-chat-core/internal/queue"
	"github.com/pinggolf/inventory-chat-core/internal/ratelimit"
)

func main() {
	bootLog := logging.New(&config.Config{LogFormat: "console", LogLevel: "info", AppEnv: "boot"})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn().Msg(".env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(cfg)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg, log)
		return
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	database.SetMaxOpenConns(cfg.DatabaseMaxConnections)
	database.SetMaxIdleConns(cfg.DatabaseMaxIdleConnections)
	database.SetConnMaxLifetime(cfg.DatabaseConnectionLifetime)

	if err := database.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("database connection established")

	if cfg.RunMigrations {
		log.Info().Msg("running database migrations")
		if err := db.RunMigrations(database, "migrations", log); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("database migrations completed")
	} else {
		log.Info().Msg("skipping migrations (RUN_MIGRATIONS=false)")
	}

	queries := db.New(database)
	c := clock.RealClock{}

	log.Info().Str("url", cfg.NATSURL).Msg("connecting to nats")
	natsManager, err := queue.NewManager(cfg.NATSURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer natsManager.Close()

	var store idemstore.Store
	if cfg.RedisURL != "" {
		redisClient, err := idemstore.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		store = idemstore.NewRedisStore(redisClient)
		log.Info().Msg("using redis idempotency store")
	} else {
		store = idemstore.NewInMemoryStore()
		log.Warn().Msg("REDIS_URL not set, using in-memory idempotency store (single-process only)")
	}

	authMgr := auth.NewManager(cfg.JWTSecret, cfg.AccessMinutes, cfg.RefreshDays, c)

	limiter := ratelimit.New(cfg.LLMRateRPS, cfg.LLMRateBurst)
	oauth := llm.OAuthConfig{
		TokenURL:     cfg.LLMOAuthTokenURL,
		ClientID:     cfg.LLMOAuthClientID,
		ClientSecret: cfg.LLMOAuthClientSecret,
		Scopes:       splitScopes(cfg.LLMOAuthScopes),
	}
	llmClient := llm.New(cfg.LMStudioBaseURL, cfg.LMStudioChatModel, cfg.LMStudioEmbedModel, cfg.LMStudioTimeout, limiter, oauth)

	ragStore, err := ragstore.LoadMemoryStoreFromDir(cfg.RAGPersistDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.RAGPersistDir).Msg("failed to load RAG documents, starting with an empty store")
		ragStore = ragstore.NewMemoryStore(nil)
	}

	emailCfg := alerts.EmailConfig{
		Host: cfg.SMTPHost,
		Port: fmt.Sprintf("%d", cfg.SMTPPort),
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.AlertEmailFrom,
		To:   cfg.AlertEmailTo,
	}
	scheduler := alerts.NewScheduler(queries, store, c, log, cfg.AlertWebhookURL, cfg.AlertSigningSecret, emailCfg, natsManager)

	alertWorker := alerts.NewWorker(natsManager, emailCfg, cfg.AlertWebhookURL, cfg.AlertSigningSecret, log)
	if err := alertWorker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start alert dispatch worker")
	}
	log.Info().Msg("alert dispatch worker started")

	server := api.NewServer(cfg, queries, log, c, authMgr, llmClient, ragStore, scheduler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AppPort),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped gracefully")
}

func runMigrations(cfg *config.Config, log zerolog.Logger) {
	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	log.Info().Msg("running database migrations")
	if err := db.RunMigrations(database, "migrations", log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations completed")
}

func splitScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

