package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weathersense/weathersense/internal/models"
)

type mockFetcher struct {
	days  []models.DailyForecast
	err   error
	calls int
}

func (m *mockFetcher) FetchForecast(ctx context.Context, loc models.Location) ([]models.DailyForecast, error) {
	m.calls++
	return m.days, m.err
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]models.DailyForecast, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(ctx context.Context, key string, value []models.DailyForecast, ttl time.Duration) error {
	return errors.New("cache down")
}

func TestService_CacheAside(t *testing.T) {
	fetcher := &mockFetcher{days: sampleDays()}
	svc := NewService(fetcher, NewInMemoryCache(), time.Minute, "in_memory")
	loc := models.Location{Latitude: 38.97, Longitude: -95.24}

	first, err := svc.GetForecast(context.Background(), loc)
	if err != nil {
		t.Fatalf("GetForecast error = %v", err)
	}
	second, err := svc.GetForecast(context.Background(), loc)
	if err != nil {
		t.Fatalf("GetForecast error = %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second served from cache)", fetcher.calls)
	}
	if len(first) != len(second) {
		t.Errorf("cached result differs: %d vs %d days", len(first), len(second))
	}
}

func TestService_CacheFailureDegradesToUpstream(t *testing.T) {
	fetcher := &mockFetcher{days: sampleDays()}
	svc := NewService(fetcher, failingCache{}, time.Minute, "memcached")

	days, err := svc.GetForecast(context.Background(), models.Location{})
	if err != nil {
		t.Fatalf("GetForecast error = %v, cache failure must not surface", err)
	}
	if len(days) != 1 {
		t.Errorf("len(days) = %d, want 1", len(days))
	}
}

func TestService_NoDataPropagates(t *testing.T) {
	fetcher := &mockFetcher{err: ErrNoData}
	svc := NewService(fetcher, NewInMemoryCache(), time.Minute, "in_memory")

	_, err := svc.GetForecast(context.Background(), models.Location{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}

	// A second call must hit upstream again: empty results are not cached.
	_, _ = svc.GetForecast(context.Background(), models.Location{})
	if fetcher.calls != 2 {
		t.Errorf("upstream calls = %d, want 2", fetcher.calls)
	}
}
