package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	// GeminiAPIKey may be empty: the proxy then answers with a deterministic
	// mocked echo so the dashboard works without a credential.
	GeminiAPIKey  string
	GeminiAPIURL  string
	GeminiTimeout time.Duration

	ForecastAPIURL  string
	ForecastTimeout time.Duration
	ForecastDays    int

	PostalAPIURL  string
	PostalCountry string
	ReverseGeoURL string
	GeoTimeout    time.Duration
	GeoUserAgent  string

	PromptsPath string

	RequestTimeout time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	SessionTTL time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Gemini struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gemini"`

	Forecast struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Days    int    `yaml:"days"`
	} `yaml:"forecast"`

	Geocoding struct {
		PostalURL  string `yaml:"postal_url"`
		Country    string `yaml:"country"`
		ReverseURL string `yaml:"reverse_url"`
		Timeout    string `yaml:"timeout"`
		UserAgent  string `yaml:"user_agent"`
	} `yaml:"geocoding"`

	Prompts struct {
		Path string `yaml:"path"`
	} `yaml:"prompts"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Health struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Session struct {
		TTL string `yaml:"ttl"`
	} `yaml:"session"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. The Gemini key comes from GEMINI_API_KEY env or the
// secrets file; a missing key is not an error. Call from project root.
func Load() (*Config, error) {
	// .env is a development convenience; absence is normal.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "5173"
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.GeminiAPIKey = sec.GeminiAPIKey
		}
	}

	cfg.GeminiAPIURL = fc.Gemini.URL
	if cfg.GeminiAPIURL == "" {
		cfg.GeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	}
	cfg.GeminiTimeout = parseDuration(fc.Gemini.Timeout, 30*time.Second)

	cfg.ForecastAPIURL = fc.Forecast.URL
	if cfg.ForecastAPIURL == "" {
		cfg.ForecastAPIURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.ForecastTimeout = parseDuration(fc.Forecast.Timeout, 5*time.Second)
	cfg.ForecastDays = fc.Forecast.Days
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 7
	}

	cfg.PostalAPIURL = fc.Geocoding.PostalURL
	if cfg.PostalAPIURL == "" {
		cfg.PostalAPIURL = "https://api.zippopotam.us"
	}
	cfg.PostalCountry = fc.Geocoding.Country
	if cfg.PostalCountry == "" {
		cfg.PostalCountry = "us"
	}
	cfg.ReverseGeoURL = fc.Geocoding.ReverseURL
	if cfg.ReverseGeoURL == "" {
		cfg.ReverseGeoURL = "https://nominatim.openstreetmap.org/reverse"
	}
	cfg.GeoTimeout = parseDuration(fc.Geocoding.Timeout, 5*time.Second)
	cfg.GeoUserAgent = fc.Geocoding.UserAgent
	if cfg.GeoUserAgent == "" {
		cfg.GeoUserAgent = "weathersense/1.0"
	}

	cfg.PromptsPath = fc.Prompts.Path
	if cfg.PromptsPath == "" {
		cfg.PromptsPath = "prompts.json"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 15*time.Minute)
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, time.Minute)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.SessionTTL = parseDuration(fc.Session.TTL, 30*time.Minute)

	cfg.CircuitBreakerEnabled = true
	if fc.Reliability.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.Reliability.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// RequestTimeout must cover the slowest upstream or handlers would cancel
// requests the upstream could still answer.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.RequestTimeout <= cfg.GeminiTimeout {
		cfg.RequestTimeout = cfg.GeminiTimeout + time.Second
	}
	if cfg.ForecastDays > 16 {
		return fmt.Errorf("forecast.days must be <= 16, got %d", cfg.ForecastDays)
	}
	return nil
}
