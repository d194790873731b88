package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weathersense/weathersense/internal/models"
	"github.com/weathersense/weathersense/internal/observability"
)

// Fetcher abstracts the upstream forecast API for the service layer.
type Fetcher interface {
	FetchForecast(ctx context.Context, loc models.Location) ([]models.DailyForecast, error)
}

// Service orchestrates forecast retrieval using a cache-aside pattern with
// upstream fallback. ErrNoData is never cached: an empty forecast is a state
// the user retries, not a result worth pinning.
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	backend string
}

// NewService creates a forecast Service. backend labels cache hit metrics
// ("in_memory" or "memcached").
func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, backend string) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		backend: backend,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetForecast returns the forecast for the location, serving from cache when
// possible. Cache failures degrade to an upstream fetch, never to an error.
func (s *Service) GetForecast(ctx context.Context, loc models.Location) ([]models.DailyForecast, error) {
	key := CacheKey(loc)
	logger := loggerFromContext(ctx)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		if logger != nil {
			logger.Warn("forecast cache get failed", zap.String("key", key), zap.Error(err))
		}
	} else if ok {
		observability.ForecastCacheHitsTotal.WithLabelValues(s.backend).Inc()
		if logger != nil {
			logger.Debug("forecast cache hit", zap.String("key", key))
		}
		return cached, nil
	}

	days, err := s.fetcher.FetchForecast(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast for %s: %w", key, err)
	}

	if setErr := s.cache.Set(ctx, key, days, s.ttl); setErr != nil {
		if logger != nil {
			logger.Warn("forecast cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return days, nil
}
