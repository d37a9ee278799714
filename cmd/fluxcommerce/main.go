package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ivanbanos/FluxCommerce/internal/config"
	"github.com/ivanbanos/FluxCommerce/internal/db"
	dbRedis "github.com/ivanbanos/FluxCommerce/internal/db/redis"
	"github.com/ivanbanos/FluxCommerce/internal/domain"
	logpkg "github.com/ivanbanos/FluxCommerce/internal/logger"
	"github.com/ivanbanos/FluxCommerce/internal/metrics"
	cartrepo "github.com/ivanbanos/FluxCommerce/internal/repository/cart"
	"github.com/ivanbanos/FluxCommerce/internal/repository/embcache"
	productrepo "github.com/ivanbanos/FluxCommerce/internal/repository/product"
	chiTransport "github.com/ivanbanos/FluxCommerce/internal/transport/chi"
	openaiTransport "github.com/ivanbanos/FluxCommerce/internal/transport/openai"
	"github.com/ivanbanos/FluxCommerce/internal/transport/ws"
	assistantuc "github.com/ivanbanos/FluxCommerce/internal/usecase/assistant"
	cataloguc "github.com/ivanbanos/FluxCommerce/internal/usecase/catalog"
	embeddinguc "github.com/ivanbanos/FluxCommerce/internal/usecase/embedding"
	healthuc "github.com/ivanbanos/FluxCommerce/internal/usecase/health"
	searchuc "github.com/ivanbanos/FluxCommerce/internal/usecase/search"
	"github.com/ivanbanos/FluxCommerce/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting FluxCommerce API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Base embedding provider (with transport metrics built-in). Kept aside
	// from the decorator chain so the health service can probe it directly.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	embedder := buildEmbedder(baseEmbedder, cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	intentParser := openaiTransport.NewIntentParser(&openaiTransport.IntentConfig{
		APIKey:     cfg.Assistant.APIKey,
		BaseURL:    cfg.Assistant.BaseURL,
		Model:      cfg.Assistant.Model,
		PromptPath: cfg.Assistant.PromptPath,
		Logger:     logger,
	})

	// Create repositories (domain-native, no adapters)
	productRepo := productrepo.New(store, cfg.Storage.KeyPrefix)
	cartRepo := cartrepo.New(store, cfg.Storage.KeyPrefix)

	// Create use case services
	searchSvc := searchuc.NewService(productRepo, embedder, cfg.Embedding.Dimensions, logger,
		searchuc.Options{DefaultLimit: cfg.Search.DefaultLimit})
	catalogSvc := cataloguc.NewService(productRepo, embedder, cfg.Embedding.Dimensions, logger)

	hub := ws.NewHub(logger)
	assistantSvc := assistantuc.NewService(intentParser, searchSvc, productRepo, cartRepo, hub, logger)

	// Health service. The store is load-bearing; the AI providers only degrade.
	healthSvc := healthuc.New(store, baseEmbedder, intentParser)

	server := chiTransport.NewServer(catalogSvc, searchSvc, assistantSvc, healthSvc, cartRepo, hub, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Embedding.Cache {
		embedder = embcache.New(base, store, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger,
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
