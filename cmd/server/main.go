package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/api"
	"github.com/voluntr/oppsearch/internal/cache"
	"github.com/voluntr/oppsearch/internal/config"
	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/geo/nominatim"
	"github.com/voluntr/oppsearch/internal/metrics"
	"github.com/voluntr/oppsearch/internal/process"
	"github.com/voluntr/oppsearch/internal/provider"
	"github.com/voluntr/oppsearch/internal/provider/idealist"
	"github.com/voluntr/oppsearch/internal/provider/justserve"
	"github.com/voluntr/oppsearch/internal/provider/volunteerhub"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/registry"
	"github.com/voluntr/oppsearch/internal/repository"
	"github.com/voluntr/oppsearch/internal/repository/postgres"
	"github.com/voluntr/oppsearch/internal/retry"
	"github.com/voluntr/oppsearch/internal/search"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	m := metrics.New()

	// персистентность опциональна: без DATABASE_URL журнал поисков
	// и настройки провайдеров живут только в памяти
	var searchLog repository.SearchLogRepository
	var providerConfigs repository.ProviderConfigRepository
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := postgres.New(ctx, cfg.Database.URL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		err = db.Bootstrap(ctx)
		cancel()
		if err != nil {
			logger.Fatal("failed to bootstrap schema", zap.Error(err))
		}

		searchLog = postgres.NewSearchLogRepo(db)
		providerConfigs = postgres.NewProviderConfigRepo(db)
		logger.Info("persistence enabled")
	}

	limiter := ratelimit.NewManager(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
	})

	reg := registry.New(logger)
	for _, p := range buildProviders(cfg, logger) {
		reg.Register(p)
		limiter.SetLimits(p.Name(), p.RateLimit())
	}
	if providerConfigs != nil {
		syncProviderConfigs(context.Background(), providerConfigs, cfg, logger)
	}

	geocoder := nominatim.New(nominatim.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		CacheTTL:  cfg.Geocoder.CacheTTL,
	}, logger)

	controller := search.NewController(search.Deps{
		Registry:  reg,
		Limiter:   limiter,
		Retry:     retry.NewExecutor(logger),
		Processor: process.New(logger),
		Cache:     cache.New(cfg.Cache.TTL, cfg.Cache.MaxSize),
		Geocoder:  geocoder,
		SearchLog: searchLog,
		Logger:    logger,
		Metrics:   m,
		Defaults: search.Options{
			Timeout:               cfg.Search.Timeout,
			MaxConcurrentRequests: cfg.Search.MaxConcurrentRequests,
		},
	})

	// стартовый прогон пробников, чтобы /api/health сразу был содержательным
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		controller.TestConnectivity(ctx)
	}()

	server := api.NewServer(controller, searchLog, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.HTTP.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("http server failed", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
}

func buildProviders(cfg *config.Config, logger *zap.Logger) []provider.Provider {
	retryCfg := retry.Config{
		MaxRetries: cfg.Search.MaxRetries,
		BaseDelay:  cfg.Search.RetryBaseDelay,
		MaxDelay:   cfg.Search.RetryMaxDelay,
		Multiplier: cfg.Search.RetryMultiplier,
	}
	limits := func(pc config.ProviderConfig) ratelimit.Config {
		return ratelimit.Config{PerMinute: pc.PerMinute, PerHour: pc.PerHour}
	}

	var providers []provider.Provider
	if pc := cfg.Providers.VolunteerHub; pc.Enabled {
		providers = append(providers, volunteerhub.New(volunteerhub.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: cfg.Providers.Timeout,
			Limits:  limits(pc),
			Retry:   retryCfg,
		}, logger))
	}
	if pc := cfg.Providers.JustServe; pc.Enabled {
		providers = append(providers, justserve.New(justserve.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: cfg.Providers.Timeout,
			Limits:  limits(pc),
			Retry:   retryCfg,
		}, logger))
	}
	if pc := cfg.Providers.Idealist; pc.Enabled {
		providers = append(providers, idealist.New(idealist.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: cfg.Providers.Timeout,
			Limits:  limits(pc),
			Retry:   retryCfg,
		}, logger))
	}
	return providers
}

// syncProviderConfigs сохраняет действующие настройки провайдеров,
// чтобы их было видно и можно было править извне
func syncProviderConfigs(ctx context.Context, repo repository.ProviderConfigRepository, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for name, pc := range map[string]config.ProviderConfig{
		provider.SourceVolunteerHub: cfg.Providers.VolunteerHub,
		provider.SourceJustServe:    cfg.Providers.JustServe,
		provider.SourceIdealist:     cfg.Providers.Idealist,
	} {
		dc := domain.ProviderConfig{
			Name:       name,
			BaseURL:    pc.BaseURL,
			APIKey:     pc.APIKey,
			PerMinute:  pc.PerMinute,
			PerHour:    pc.PerHour,
			MaxRetries: cfg.Search.MaxRetries,
			BaseDelay:  cfg.Search.RetryBaseDelay,
			MaxDelay:   cfg.Search.RetryMaxDelay,
			Multiplier: cfg.Search.RetryMultiplier,
			Enabled:    pc.Enabled,
		}
		if err := repo.Upsert(ctx, &dc); err != nil {
			logger.Warn("failed to sync provider config",
				zap.String("provider", name),
				zap.Error(err),
			)
		}
	}
}
