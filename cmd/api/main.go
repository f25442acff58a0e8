// Package main is the entry point for the resonance API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/choirlabs/resonance/internal/api"
	"github.com/choirlabs/resonance/internal/candidate"
	"github.com/choirlabs/resonance/internal/config"
	"github.com/choirlabs/resonance/internal/embedding"
	"github.com/choirlabs/resonance/internal/health"
	"github.com/choirlabs/resonance/internal/message"
	"github.com/choirlabs/resonance/internal/middleware"
	"github.com/choirlabs/resonance/internal/ranking"
	"github.com/choirlabs/resonance/internal/reward"
	"github.com/choirlabs/resonance/internal/service"
	"github.com/choirlabs/resonance/internal/tracing"
	"github.com/choirlabs/resonance/internal/vectorstore"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Resonance API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing (no-op provider unless enabled)
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "resonance-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	// Postgres holds message ownership and voice balances.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		// Not fatal: readiness reports it and the database may come up later.
		logger.Warn("database not reachable at startup", "error", err)
	}
	cancelPing()

	// Redis is optional; when configured it caches embedding vectors.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	openaiClient, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		logger.Error("failed to create embeddings client", "error", err)
		os.Exit(1)
	}
	var embedder embedding.Embedder = openaiClient
	if redisClient != nil {
		embedder = embedding.NewCachedEmbedder(openaiClient, redisClient, cfg.EmbeddingModel, logger)
	}

	store := vectorstore.NewClient(vectorstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	})

	tuning := ranking.DefaultTuning()
	if cfg.RankingCalibrationPath != "" {
		loaded, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
		if err != nil {
			logger.Error("failed to load ranking calibration", "error", err)
			os.Exit(1)
		}
		tuning = ranking.MergeCalibration(tuning, loaded)
	}

	policy := candidate.PolicySubstitute
	if cfg.IDPolicy == "reject" {
		policy = candidate.PolicyReject
	}

	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	rewardMetrics := reward.NewMetrics()
	if err := rewardMetrics.Register(registry); err != nil {
		logger.Error("failed to register reward metrics", "error", err)
		os.Exit(1)
	}

	svc := service.New(service.Config{
		Embedder:    embedder,
		Store:       store,
		Messages:    message.NewPostgresRepository(db, logger),
		Balances:    reward.NewPostgresBalanceStore(db, logger),
		Normalizer:  candidate.NewNormalizer(policy, logger),
		Calculator:  reward.Calculator{Base: cfg.RewardBase, Multiplier: cfg.RewardMultiplier},
		Tuning:      tuning,
		Metrics:     rewardMetrics,
		SearchLimit: cfg.SearchLimit,
		Logger:      logger,
	})

	msgHandlers := api.NewMessageHandlers(svc)

	healthConfig := api.HealthHandlersConfig{
		DBChecker:          health.NewDBChecker(db),
		VectorStoreChecker: health.NewVectorStoreChecker(cfg.QdrantURL),
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/new_message", msgHandlers.NewMessage)
	mux.HandleFunc("/search", msgHandlers.Search)
	mux.HandleFunc("/dashboard/", msgHandlers.Dashboard)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"resonance-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Tracing -> HTTPMetrics -> Logging
	handler := middleware.RequestID(
		middleware.Tracing("resonance-api")(
			middleware.HTTPMetrics(httpMetrics)(
				middleware.Logging(logger)(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
