package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/cache"
	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/registry"
)

const healthCheckTimeout = 5 * time.Second

// Stats - сводное состояние поискового ядра для операторских ручек
type Stats struct {
	RegisteredProviders int                         `json:"registeredProviders"`
	HealthyProviders    int                         `json:"healthyProviders"`
	Providers           []registry.HealthStatus     `json:"providers"`
	Cache               cache.Stats                 `json:"cache"`
	RateLimits          map[string]ratelimit.Status `json:"rateLimits"`
}

func (c *Controller) GetCacheStats() cache.Stats {
	return c.cache.Stats()
}

func (c *Controller) ClearCache() {
	c.cache.Clear()
	c.logger.Info("results cache cleared")
}

func (c *Controller) ConfigureCaching(defaultTTL time.Duration, maxSize int) {
	c.cache.Configure(defaultTTL, maxSize)
	c.logger.Info("results cache reconfigured",
		zap.Duration("ttl", defaultTTL),
		zap.Int("max_size", maxSize),
	)
}

// InvalidateCache удаляет записи, совпавшие с фильтром, и возвращает их число
func (c *Controller) InvalidateCache(f cache.Filter) int {
	removed := c.cache.Invalidate(f)
	if removed > 0 {
		c.logger.Info("cache entries invalidated", zap.Int("removed", removed))
	}
	return removed
}

// WarmCache прогревает кеш поиском по списку параметров. Частичные
// результаты не кешируются, такие локации в прогрев не попадают.
func (c *Controller) WarmCache(ctx context.Context, paramsList []domain.SearchParameters) int {
	// ключ кеша считается от санированных параметров, поэтому
	// санируем до прогрева, иначе последующие поиски промахнутся
	sane := make([]domain.SearchParameters, 0, len(paramsList))
	for _, p := range paramsList {
		p.Sanitize()
		if err := p.Validate(); err != nil {
			c.logger.Warn("skipping invalid warm params", zap.Error(err))
			continue
		}
		sane = append(sane, p)
	}

	warmed := c.cache.Warm(ctx, sane, func(ctx context.Context, p domain.SearchParameters) ([]domain.Opportunity, cache.Metadata, error) {
		providers := c.selectProviders(c.defaults)
		if len(providers) == 0 {
			return nil, cache.Metadata{}, domain.ErrNoProviders
		}

		start := time.Now()
		raw := c.fanOut(ctx, providers, p, c.defaults.Timeout)
		result := c.assemble(p, raw, start)
		if result.PartialResults {
			return nil, cache.Metadata{}, &result.Errors[0]
		}
		return result.Opportunities, cache.Metadata{
			TotalResults: result.TotalResults,
			Sources:      result.Sources,
			ResponseTime: result.ResponseTime,
		}, nil
	})

	c.logger.Info("cache warmed",
		zap.Int("requested", len(paramsList)),
		zap.Int("warmed", warmed),
	)
	return warmed
}

// TestConnectivity прогоняет пробники всех провайдеров и возвращает
// их актуальное состояние
func (c *Controller) TestConnectivity(ctx context.Context) []registry.HealthStatus {
	statuses := c.registry.CheckAll(ctx, healthCheckTimeout)

	if c.metrics != nil {
		healthy := 0
		for _, st := range statuses {
			if st.Healthy {
				healthy++
			}
		}
		c.metrics.SetProvidersHealthy(float64(healthy))
	}
	return statuses
}

// GetSearchStats - снимок провайдеров, кеша и окон rate limiter
func (c *Controller) GetSearchStats() Stats {
	statuses := c.registry.Statuses()

	healthy := 0
	limits := make(map[string]ratelimit.Status, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			healthy++
		}
		limits[st.Name] = c.limiter.GetStatus(st.Name)
	}

	return Stats{
		RegisteredProviders: c.registry.Count(),
		HealthyProviders:    healthy,
		Providers:           statuses,
		Cache:               c.cache.Stats(),
		RateLimits:          limits,
	}
}
