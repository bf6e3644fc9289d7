package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"imagegate/internal/metrics"
	"imagegate/pkg/logging/logging"
)

// LoggingEntryStore wraps an EntryStore with logging + metrics.
type LoggingEntryStore struct {
	inner EntryStore
}

func NewLoggingEntryStore(inner EntryStore) EntryStore {
	return &LoggingEntryStore{inner: inner}
}

func (s *LoggingEntryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	start := time.Now()
	e, ok, err := s.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("artifact_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}
	logger := logging.L(ctx)
	if err != nil {
		logger.Error("result_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("result_cache_get", fields...)
	}
	return e, ok, err
}

func (s *LoggingEntryStore) Set(ctx context.Context, key string, e Entry) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, e)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := []zap.Field{
		zap.String("artifact_key", key),
		zap.String("public_url", e.URL),
		zap.Float64("latency_ms", latencyMs),
	}
	logger := logging.L(ctx)
	if err != nil {
		logger.Error("result_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("result_cache_set", fields...)
	}
	return err
}
