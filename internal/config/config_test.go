package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"DATABASE_URL",
	"VOLUNTEERHUB_API_KEY", "VOLUNTEERHUB_BASE_URL", "VOLUNTEERHUB_ENABLED",
	"VOLUNTEERHUB_PER_MINUTE", "VOLUNTEERHUB_PER_HOUR",
	"JUSTSERVE_API_KEY", "JUSTSERVE_BASE_URL", "JUSTSERVE_ENABLED",
	"IDEALIST_API_KEY", "IDEALIST_BASE_URL", "IDEALIST_ENABLED",
	"PROVIDER_TIMEOUT_SEC",
	"NOMINATIM_BASE_URL", "NOMINATIM_USER_AGENT", "GEOCODE_CACHE_TTL_SEC",
	"SEARCH_TIMEOUT_SEC", "MAX_CONCURRENT_REQUESTS",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY_MS", "RETRY_MAX_DELAY_MS", "RETRY_MULTIPLIER",
	"CACHE_TTL_SEC", "CACHE_MAX_ENTRIES",
	"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_HOUR",
	"LOG_LEVEL", "HTTP_ADDR",
}

func clearEnvVars() {
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Search.Timeout != 10*time.Second {
		t.Errorf("Search.Timeout = %v, want 10s", cfg.Search.Timeout)
	}
	if cfg.Search.MaxConcurrentRequests != 3 {
		t.Errorf("MaxConcurrentRequests = %d, want 3", cfg.Search.MaxConcurrentRequests)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxSize != 50 {
		t.Errorf("Cache.MaxSize = %d, want 50", cfg.Cache.MaxSize)
	}
	if cfg.RateLimit.PerMinute != 10 || cfg.RateLimit.PerHour != 100 {
		t.Errorf("RateLimit = %d/%d, want 10/100", cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour)
	}
	if !cfg.Providers.VolunteerHub.Enabled {
		t.Error("providers should be enabled by default")
	}
	if cfg.Database.URL != "" {
		t.Error("Database.URL should default to empty (persistence off)")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("VOLUNTEERHUB_API_KEY", "vh-key")
	os.Setenv("SEARCH_TIMEOUT_SEC", "20")
	os.Setenv("CACHE_MAX_ENTRIES", "10")
	os.Setenv("RETRY_MULTIPLIER", "1.5")
	os.Setenv("JUSTSERVE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Providers.VolunteerHub.APIKey != "vh-key" {
		t.Errorf("VolunteerHub.APIKey = %q, want vh-key", cfg.Providers.VolunteerHub.APIKey)
	}
	if cfg.Search.Timeout != 20*time.Second {
		t.Errorf("Search.Timeout = %v, want 20s", cfg.Search.Timeout)
	}
	if cfg.Cache.MaxSize != 10 {
		t.Errorf("Cache.MaxSize = %d, want 10", cfg.Cache.MaxSize)
	}
	if cfg.Search.RetryMultiplier != 1.5 {
		t.Errorf("RetryMultiplier = %v, want 1.5", cfg.Search.RetryMultiplier)
	}
	if cfg.Providers.JustServe.Enabled {
		t.Error("JUSTSERVE_ENABLED=false should disable the provider")
	}
}

func TestLoad_AllProvidersDisabled(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("VOLUNTEERHUB_ENABLED", "false")
	os.Setenv("JUSTSERVE_ENABLED", "false")
	os.Setenv("IDEALIST_ENABLED", "false")

	if _, err := Load(); err != ErrNoProvidersEnabled {
		t.Errorf("Load() error = %v, want ErrNoProvidersEnabled", err)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("SEARCH_TIMEOUT_SEC", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Timeout != 10*time.Second {
		t.Errorf("Search.Timeout = %v, want default 10s on bad value", cfg.Search.Timeout)
	}
}
