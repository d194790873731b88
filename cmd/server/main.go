package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/weathersense/weathersense/internal/ai"
	"github.com/weathersense/weathersense/internal/circuitbreaker"
	"github.com/weathersense/weathersense/internal/config"
	"github.com/weathersense/weathersense/internal/forecast"
	"github.com/weathersense/weathersense/internal/geo"
	httphandler "github.com/weathersense/weathersense/internal/http"
	"github.com/weathersense/weathersense/internal/lifecycle"
	"github.com/weathersense/weathersense/internal/observability"
	"github.com/weathersense/weathersense/internal/present"
	"github.com/weathersense/weathersense/internal/prompt"
	"github.com/weathersense/weathersense/internal/session"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	resolver := geo.NewResolver(cfg.PostalAPIURL, cfg.PostalCountry, cfg.ReverseGeoURL, cfg.GeoUserAgent, cfg.GeoTimeout)

	var cacheSvc forecast.Cache
	var memcacheCloser *forecast.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := forecast.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = forecast.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}
	forecastClient := forecast.NewClient(cfg.ForecastAPIURL, cfg.ForecastDays, cfg.ForecastTimeout)
	forecastSvc := forecast.NewService(forecastClient, cacheSvc, cfg.CacheTTL, cfg.CacheBackend)

	presenter, err := present.New()
	if err != nil {
		logger.Fatal("presenter", zap.Error(err))
	}

	// A missing or invalid prompt file keeps the dashboard up; summary and
	// chat report the problem inline instead.
	prompts, err := prompt.Load(cfg.PromptsPath)
	if err != nil {
		logger.Warn("prompt templates unavailable", zap.String("path", cfg.PromptsPath), zap.Error(err))
		prompts = nil
	}

	gemini := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiAPIURL, cfg.GeminiTimeout)
	if gemini.Mocked() {
		logger.Warn("GEMINI_API_KEY not set; AI responses are mocked")
	}
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "gemini",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("gemini", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("gemini", float64(to))
			},
		})
		gemini.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("gemini", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	// The gateway goes through the proxy endpoint rather than calling the
	// model client directly, so the dashboard exercises the same path as
	// external proxy clients.
	gateway := ai.NewGateway("http://localhost:"+cfg.ServerPort+"/api/gemini", cfg.GeminiTimeout+5*time.Second)

	sessions := session.NewRegistry(cfg.SessionTTL)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(resolver, forecastSvc, presenter, prompts, gemini, gateway, sessions, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sessions.Run(sweepCtx, time.Minute)

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
