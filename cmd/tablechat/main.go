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

	"github.com/tablechat/tablechat/internal/answer"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/embedding"
	"github.com/tablechat/tablechat/internal/index"
	idxPinecone "github.com/tablechat/tablechat/internal/index/pinecone"
	idxRedis "github.com/tablechat/tablechat/internal/index/redis"
	logpkg "github.com/tablechat/tablechat/internal/logger"
	"github.com/tablechat/tablechat/internal/metrics"
	"github.com/tablechat/tablechat/internal/similarity"
	chiTransport "github.com/tablechat/tablechat/internal/transport/chi"
	chatuc "github.com/tablechat/tablechat/internal/usecase/chat"
	ingestuc "github.com/tablechat/tablechat/internal/usecase/ingest"
	"github.com/tablechat/tablechat/internal/version"
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

	logger.Info("Starting tablechat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Create index client based on driver
	ctx := context.Background()
	var idx index.Client
	var pinger chiTransport.Pinger
	switch cfg.Index.Driver {
	case "pinecone":
		client := idxPinecone.NewClient(idxPinecone.Config{
			APIKey: cfg.Index.APIKey,
			Host:   cfg.Index.Host,
		})
		idx = client
		pinger = client
	case "redis":
		store, err := idxRedis.NewStore(idxRedis.Config{
			Addrs:     cfg.Index.Addrs,
			Password:  cfg.Index.Password,
			IndexName: cfg.Index.IndexName,
			KeyPrefix: cfg.Index.KeyPrefix,
		})
		if err != nil {
			logger.Fatal("Failed to create index store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Index.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Index not ready", zap.Error(err))
		}
		if err := store.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure vector index", zap.Error(err))
		}
		idx = store
		pinger = store
	default:
		logger.Fatal("Unknown index driver", zap.String("driver", cfg.Index.Driver))
	}
	logger.Info("Index client ready")

	// Build the pipeline (composition root)
	scorer := similarity.NewClient(similarity.Config{
		APIKey: cfg.Similarity.APIKey,
		URL:    cfg.Similarity.URL,
	})
	generator := embedding.NewGenerator(scorer, embedding.Config{
		Reference: cfg.Similarity.Reference,
		BatchSize: cfg.Similarity.BatchSize,
		Delay:     time.Duration(cfg.Similarity.DelayMS) * time.Millisecond,
		Logger:    logger,
	})
	answerer := answer.NewGenerator(answer.Config{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Logger:      logger,
	})

	ingestSvc := ingestuc.NewService(ingestuc.Config{
		Embedder:  generator,
		Index:     idx,
		BatchSize: cfg.Index.UpsertBatchSize,
		Logger:    logger,
	})
	chatSvc := chatuc.NewService(chatuc.Config{
		Embedder: generator,
		Index:    idx,
		Answerer: answerer,
		TopK:     cfg.Index.TopK,
		Logger:   logger,
	})

	server := chiTransport.NewServer(ingestSvc, chatSvc, pinger, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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
						"error": "internal error",
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
