package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = "server:\n  port: \"9090\"\n"

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write dev.yaml: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "secrets.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write secrets.yaml: %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoad_NoGeminiKeyIsNotFatal(t *testing.T) {
	savedKey := os.Getenv("GEMINI_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	defer func() {
		if savedKey != "" {
			os.Setenv("GEMINI_API_KEY", savedKey)
		}
	}()

	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (missing key enables mock mode)", err)
	}
	if cfg.GeminiAPIKey != "" {
		t.Errorf("GeminiAPIKey = %q, want empty", cfg.GeminiAPIKey)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
}

func TestLoad_KeyFromSecretsFile(t *testing.T) {
	savedKey := os.Getenv("GEMINI_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	defer func() {
		if savedKey != "" {
			os.Setenv("GEMINI_API_KEY", savedKey)
		}
	}()

	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "gemini_api_key: key-from-secrets-file\n")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeminiAPIKey != "key-from-secrets-file" {
		t.Errorf("GeminiAPIKey = %q, want key from secrets file", cfg.GeminiAPIKey)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	savedEnv := os.Getenv("ENV_NAME")
	os.Setenv("ENV_NAME", "nonexistent")
	defer func() { os.Setenv("ENV_NAME", savedEnv) }()

	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing config file, got nil")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	savedPort := os.Getenv("PORT")
	os.Unsetenv("PORT")
	defer func() {
		if savedPort != "" {
			os.Setenv("PORT", savedPort)
		}
	}()

	dir := t.TempDir()
	writeEnvFile(t, dir, "{}\n")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "5173" {
		t.Errorf("ServerPort = %q, want 5173", cfg.ServerPort)
	}
	if cfg.ForecastAPIURL != "https://api.open-meteo.com/v1/forecast" {
		t.Errorf("ForecastAPIURL = %q", cfg.ForecastAPIURL)
	}
	if cfg.ForecastDays != 7 {
		t.Errorf("ForecastDays = %d, want 7", cfg.ForecastDays)
	}
	if cfg.PostalCountry != "us" {
		t.Errorf("PostalCountry = %q, want us", cfg.PostalCountry)
	}
	if cfg.PromptsPath != "prompts.json" {
		t.Errorf("PromptsPath = %q, want prompts.json", cfg.PromptsPath)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if !cfg.CircuitBreakerEnabled {
		t.Error("CircuitBreakerEnabled = false, want true by default")
	}
	if cfg.RequestTimeout <= cfg.GeminiTimeout {
		t.Errorf("RequestTimeout %v must exceed GeminiTimeout %v", cfg.RequestTimeout, cfg.GeminiTimeout)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	savedBackend := os.Getenv("CACHE_BACKEND")
	os.Setenv("CACHE_BACKEND", "redis")
	defer func() {
		if savedBackend != "" {
			os.Setenv("CACHE_BACKEND", savedBackend)
		} else {
			os.Unsetenv("CACHE_BACKEND")
		}
	}()

	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdir(t, dir)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for unknown cache backend, got nil")
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("Load() error = %v, want cache.backend message", err)
	}
}

func TestLoad_ForecastDaysBound(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, "forecast:\n  days: 20\n")
	chdir(t, dir)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for forecast.days > 16, got nil")
	}
}
