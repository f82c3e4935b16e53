package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

var ErrNoProvidersEnabled = errors.New("at least one provider must be enabled")

type Config struct {
	Database  DatabaseConfig
	Providers ProvidersConfig
	Geocoder  GeocoderConfig
	Search    SearchConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	HTTP      HTTPConfig
}

// DatabaseConfig - опциональное хранилище журнала поисков;
// пустой URL отключает персистентность целиком
type DatabaseConfig struct {
	URL string
}

type ProvidersConfig struct {
	VolunteerHub ProviderConfig
	JustServe    ProviderConfig
	Idealist     ProviderConfig
	Timeout      time.Duration
}

type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Enabled   bool
	PerMinute int
	PerHour   int
}

type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
}

type SearchConfig struct {
	Timeout               time.Duration
	MaxConcurrentRequests int
	MaxRetries            int
	RetryBaseDelay        time.Duration
	RetryMaxDelay         time.Duration
	RetryMultiplier       float64
}

type LogConfig struct {
	Level string
}

type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// RateLimitConfig - запасные лимиты для провайдеров без своих настроек
type RateLimitConfig struct {
	PerMinute int
	PerHour   int
}

type HTTPConfig struct {
	Addr string
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Providers: ProvidersConfig{
			VolunteerHub: ProviderConfig{
				APIKey:    os.Getenv("VOLUNTEERHUB_API_KEY"),
				BaseURL:   getEnvOrDefault("VOLUNTEERHUB_BASE_URL", "https://api.volunteerhub.com"),
				Enabled:   getEnvBoolOrDefault("VOLUNTEERHUB_ENABLED", true),
				PerMinute: getEnvIntOrDefault("VOLUNTEERHUB_PER_MINUTE", 10),
				PerHour:   getEnvIntOrDefault("VOLUNTEERHUB_PER_HOUR", 100),
			},
			JustServe: ProviderConfig{
				APIKey:    os.Getenv("JUSTSERVE_API_KEY"),
				BaseURL:   getEnvOrDefault("JUSTSERVE_BASE_URL", "https://api.justserve.org"),
				Enabled:   getEnvBoolOrDefault("JUSTSERVE_ENABLED", true),
				PerMinute: getEnvIntOrDefault("JUSTSERVE_PER_MINUTE", 10),
				PerHour:   getEnvIntOrDefault("JUSTSERVE_PER_HOUR", 100),
			},
			Idealist: ProviderConfig{
				APIKey:    os.Getenv("IDEALIST_API_KEY"),
				BaseURL:   getEnvOrDefault("IDEALIST_BASE_URL", "https://api.idealist.org"),
				Enabled:   getEnvBoolOrDefault("IDEALIST_ENABLED", true),
				PerMinute: getEnvIntOrDefault("IDEALIST_PER_MINUTE", 10),
				PerHour:   getEnvIntOrDefault("IDEALIST_PER_HOUR", 100),
			},
			Timeout: time.Duration(getEnvIntOrDefault("PROVIDER_TIMEOUT_SEC", 15)) * time.Second,
		},
		Geocoder: GeocoderConfig{
			BaseURL:   getEnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnvOrDefault("NOMINATIM_USER_AGENT", "oppsearch/1.0"),
			CacheTTL:  time.Duration(getEnvIntOrDefault("GEOCODE_CACHE_TTL_SEC", 86400)) * time.Second,
		},
		Search: SearchConfig{
			Timeout:               time.Duration(getEnvIntOrDefault("SEARCH_TIMEOUT_SEC", 10)) * time.Second,
			MaxConcurrentRequests: getEnvIntOrDefault("MAX_CONCURRENT_REQUESTS", 3),
			MaxRetries:            getEnvIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:        time.Duration(getEnvIntOrDefault("RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
			RetryMaxDelay:         time.Duration(getEnvIntOrDefault("RETRY_MAX_DELAY_MS", 30000)) * time.Millisecond,
			RetryMultiplier:       getEnvFloatOrDefault("RETRY_MULTIPLIER", 2.0),
		},
		Cache: CacheConfig{
			TTL:     time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 300)) * time.Second,
			MaxSize: getEnvIntOrDefault("CACHE_MAX_ENTRIES", 50),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
			PerHour:   getEnvIntOrDefault("RATE_LIMIT_PER_HOUR", 100),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.Providers.VolunteerHub.Enabled &&
		!c.Providers.JustServe.Enabled &&
		!c.Providers.Idealist.Enabled {
		return ErrNoProvidersEnabled
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
