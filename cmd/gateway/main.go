package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imagegate/internal/cache"
	"imagegate/internal/config"
	"imagegate/internal/fetch"
	"imagegate/internal/handlers"
	"imagegate/internal/httpserver"
	"imagegate/internal/metrics"
	"imagegate/internal/pipeline"
	"imagegate/internal/storage"
	"imagegate/internal/transcode"
	"imagegate/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := config.Load()

	logger.Info("loaded config",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("storage_type", cfg.StorageType),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("cdn_base_url", cfg.CDNBaseURL),
		zap.Int("max_concurrent_downloads", cfg.Perf.MaxConcurrentDownloads),
		zap.Int("max_concurrent_processing", cfg.Perf.MaxConcurrentProcessing),
		zap.Int("cpu_thread_pool_size", cfg.Perf.CPUThreadPoolSize),
		zap.Int64("max_image_size", cfg.Perf.MaxImageSize),
		zap.Bool("enable_http2", cfg.Perf.EnableHTTP2),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Object store -----
	store, err := storage.NewFromConfig(cfg)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return err
	}

	// ----- Result cache + single-flight resolver -----
	entries := cache.NewEntryStore(cache.Config{
		Backend: cfg.CacheBackend,
		Prefix:  "imagegate",
	}, redisClient)
	entries = cache.NewLoggingEntryStore(entries)
	resolver := cache.NewResolver(entries, store)

	// ----- Fetcher + transcoder -----
	fetcher := fetch.New(cfg.Perf)
	transcoder := transcode.New(cfg.Perf)
	defer transcoder.Close()

	// ----- Pipeline + handlers -----
	pipe := pipeline.New(fetcher, transcoder, store, resolver)
	images := handlers.NewImagesHandler(pipe)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	// The resize timeout covers the whole pipeline: download budget
	// plus transcode and store headroom.
	httpserver.SetupRouter(r, logger, images, cfg.Perf.HTTPTimeout+15*time.Second)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Perf.HTTPTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("storage_type", cfg.StorageType),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
