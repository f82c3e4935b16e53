package search

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/cache"
	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/geo"
	"github.com/voluntr/oppsearch/internal/metrics"
	"github.com/voluntr/oppsearch/internal/process"
	"github.com/voluntr/oppsearch/internal/provider"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/registry"
	"github.com/voluntr/oppsearch/internal/repository"
	"github.com/voluntr/oppsearch/internal/retry"
)

const (
	defaultSearchTimeout = 10 * time.Second
	defaultMaxConcurrent = 3
	logRunTimeout        = 5 * time.Second
)

// Options - параметры одного прогона поиска. Нулевые значения
// заменяются дефолтами контроллера; AllProviders инвертирован,
// чтобы нулевое значение означало "только здоровые".
type Options struct {
	Timeout               time.Duration
	MaxConcurrentRequests int
	AllProviders          bool // включать провайдеров, проваливших пробник
}

// Deps - зависимости контроллера. Logger, Metrics и SearchLog опциональны.
type Deps struct {
	Registry  *registry.Registry
	Limiter   *ratelimit.Manager
	Retry     *retry.Executor
	Processor *process.Processor
	Cache     *cache.ResultsCache
	Geocoder  geo.Geocoder
	SearchLog repository.SearchLogRepository
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Defaults  Options
}

// Controller - оркестратор поиска: кеш, выбор провайдеров,
// параллельный fan-out с лимитами и ретраями, сборка результата.
type Controller struct {
	registry  *registry.Registry
	limiter   *ratelimit.Manager
	retry     *retry.Executor
	processor *process.Processor
	cache     *cache.ResultsCache
	searchLog repository.SearchLogRepository
	logger    *zap.Logger
	metrics   *metrics.Metrics
	defaults  Options

	multi *MultiLocationService
}

func NewController(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Defaults.Timeout <= 0 {
		deps.Defaults.Timeout = defaultSearchTimeout
	}
	if deps.Defaults.MaxConcurrentRequests <= 0 {
		deps.Defaults.MaxConcurrentRequests = defaultMaxConcurrent
	}

	c := &Controller{
		registry:  deps.Registry,
		limiter:   deps.Limiter,
		retry:     deps.Retry,
		processor: deps.Processor,
		cache:     deps.Cache,
		searchLog: deps.SearchLog,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		defaults:  deps.Defaults,
	}
	c.multi = NewMultiLocationService(deps.Geocoder, c, deps.Logger, deps.Metrics)
	return c
}

func (c *Controller) fill(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = c.defaults.Timeout
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = c.defaults.MaxConcurrentRequests
	}
	return opts
}

// PerformSearch выполняет один поиск: кеш -> выбор провайдеров ->
// параллельный fan-out -> обработка -> кеш. Ошибка возвращается только
// при невалидных параметрах; отказы провайдеров попадают в result.Errors.
func (c *Controller) PerformSearch(ctx context.Context, params domain.SearchParameters, opts Options) (*domain.SearchResult, error) {
	start := time.Now()

	params.Sanitize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	opts = c.fill(opts)

	if c.metrics != nil {
		c.metrics.IncSearchesInFlight()
		defer c.metrics.DecSearchesInFlight()
	}

	if result, ok := c.fromCache(params, start); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
			c.metrics.RecordSearch("single", "cache_hit", time.Since(start))
		}
		return result, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	providers := c.selectProviders(opts)
	if len(providers) == 0 {
		c.logger.Warn("search with no available providers")
		result := &domain.SearchResult{
			Opportunities: []domain.Opportunity{},
			Errors: []domain.SearchError{
				*domain.NewSearchError("registry", domain.ErrorValidation, domain.ErrNoProviders.Error()),
			},
			Sources:      []string{},
			ResponseTime: time.Since(start),
		}
		c.logRun(params, result)
		return result, nil
	}

	raw := c.fanOut(ctx, providers, params, opts.Timeout)
	result := c.assemble(params, raw, start)

	// частичный результат не кешируем: иначе retryFailedSources
	// никогда не добрался бы до упавших источников
	if !result.PartialResults {
		c.cache.Set(params, result.Opportunities, cache.Metadata{
			TotalResults: result.TotalResults,
			Sources:      result.Sources,
			ResponseTime: result.ResponseTime,
		}, 0)
	}

	c.logRun(params, result)
	if c.metrics != nil {
		c.metrics.RecordSearch("single", searchStatus(result), time.Since(start))
	}
	return result, nil
}

func (c *Controller) fromCache(params domain.SearchParameters, start time.Time) (*domain.SearchResult, bool) {
	data, ok := c.cache.Get(params)
	if !ok {
		return nil, false
	}
	result := &domain.SearchResult{
		Opportunities: data,
		TotalResults:  len(data),
		FromCache:     true,
		ResponseTime:  time.Since(start),
	}
	if e, ok := c.cache.GetEntry(params); ok {
		result.Sources = e.Metadata.Sources
	}
	return result, true
}

// selectProviders берёт здоровых (или всех) в порядке регистрации
// и обрезает до лимита параллелизма
func (c *Controller) selectProviders(opts Options) []provider.Provider {
	var ps []provider.Provider
	if opts.AllProviders {
		ps = c.registry.All()
	} else {
		ps = c.registry.Healthy()
	}
	if len(ps) > opts.MaxConcurrentRequests {
		ps = ps[:opts.MaxConcurrentRequests]
	}
	return ps
}

// fanOut опрашивает провайдеров параллельно под общим дедлайном.
// Каждый воркер проходит rate limiter и ретраи; опоздавшие к дедлайну
// результаты остаются в буфере канала и отбрасываются.
func (c *Controller) fanOut(ctx context.Context, providers []provider.Provider, params domain.SearchParameters, timeout time.Duration) []domain.ProviderResult {
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resCh := make(chan domain.ProviderResult, len(providers))
	for _, p := range providers {
		go func(p provider.Provider) {
			resCh <- c.queryProvider(searchCtx, p, params)
		}(p)
	}

	pending := make(map[string]bool, len(providers))
	for _, p := range providers {
		pending[p.Name()] = true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	results := make([]domain.ProviderResult, 0, len(providers))
	for len(results) < len(providers) {
		select {
		case r := <-resCh:
			delete(pending, r.Source)
			results = append(results, r)
		case <-timer.C:
			return c.markTimedOut(results, pending, timeout)
		case <-ctx.Done():
			return c.markTimedOut(results, pending, timeout)
		}
	}
	return results
}

func (c *Controller) markTimedOut(results []domain.ProviderResult, pending map[string]bool, timeout time.Duration) []domain.ProviderResult {
	for name := range pending {
		c.logger.Warn("provider missed search deadline",
			zap.String("provider", name),
			zap.Duration("timeout", timeout),
		)
		results = append(results, domain.ProviderResult{
			Source:       name,
			Err:          domain.NewSearchError(name, domain.ErrorTimeout, "provider did not respond within search timeout"),
			ResponseTime: timeout,
		})
	}
	return results
}

func (c *Controller) queryProvider(ctx context.Context, p provider.Provider, params domain.SearchParameters) domain.ProviderResult {
	name := p.Name()
	start := time.Now()

	if !c.limiter.Allow(name) {
		if c.metrics != nil {
			c.metrics.RecordRateLimitWait(name)
		}
		c.logger.Debug("waiting for rate limit window", zap.String("provider", name))
	}
	if err := c.limiter.Wait(ctx, name); err != nil {
		serr := domain.Classify(name, err)
		return domain.ProviderResult{Source: name, Err: serr, ResponseTime: time.Since(start)}
	}

	// Wait уже записал первую попытку в окно лимитера,
	// отдельно фиксируем только повторные
	var opps []domain.Opportunity
	first := true
	serr := c.retry.Do(ctx, name, p.Retry(), func(ctx context.Context) error {
		if !first {
			c.limiter.Record(name)
		}
		first = false
		found, err := p.Search(ctx, params)
		if err != nil {
			return err
		}
		opps = found
		return nil
	})

	elapsed := time.Since(start)
	if serr != nil {
		if c.metrics != nil {
			c.metrics.RecordProviderRequest(name, string(serr.Type), elapsed)
		}
		c.logger.Warn("provider search failed",
			zap.String("provider", name),
			zap.String("error_type", string(serr.Type)),
			zap.String("error", serr.Message),
		)
		return domain.ProviderResult{Source: name, Err: serr, ResponseTime: elapsed}
	}

	if c.metrics != nil {
		c.metrics.RecordProviderRequest(name, "success", elapsed)
	}
	c.logger.Debug("provider search succeeded",
		zap.String("provider", name),
		zap.Int("results", len(opps)),
		zap.Duration("elapsed", elapsed),
	)
	return domain.ProviderResult{
		Source:        name,
		Opportunities: opps,
		Success:       true,
		ResponseTime:  elapsed,
	}
}

// assemble прогоняет сырые результаты через конвейер обработки
// и собирает итог: sources - успешные источники, partialResults -
// признак хотя бы одного отказа
func (c *Controller) assemble(params domain.SearchParameters, raw []domain.ProviderResult, start time.Time) *domain.SearchResult {
	opps, stats := c.processor.Process(raw, params.Location, params.RadiusMiles, process.Options{})
	if params.Limit > 0 && len(opps) > params.Limit {
		opps = opps[:params.Limit]
	}

	result := &domain.SearchResult{
		Opportunities: opps,
		Sources:       []string{},
		TotalResults:  len(opps),
		ResponseTime:  time.Since(start),
	}
	for _, r := range raw {
		if r.Success {
			result.Sources = append(result.Sources, r.Source)
		} else if r.Err != nil {
			result.Errors = append(result.Errors, *r.Err)
		}
	}
	result.PartialResults = len(result.Errors) > 0

	c.logger.Info("search completed",
		zap.Int("providers", len(raw)),
		zap.Int("results", result.TotalResults),
		zap.Int("duplicates_removed", stats.DuplicatesRemoved),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("partial", result.PartialResults),
		zap.Duration("elapsed", result.ResponseTime),
	)
	return result
}

// RetryFailedSources перезапрашивает только упавшие в prev источники
// и сливает их результаты с уже полученными. Источники, упавшие снова,
// остаются в errors нового результата.
func (c *Controller) RetryFailedSources(ctx context.Context, params domain.SearchParameters, prev *domain.SearchResult, opts Options) (*domain.SearchResult, error) {
	start := time.Now()

	params.Sanitize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if prev == nil || len(prev.Errors) == 0 {
		return prev, nil
	}
	opts = c.fill(opts)

	var failed []provider.Provider
	seen := make(map[string]bool)
	for _, se := range prev.Errors {
		if seen[se.Source] {
			continue
		}
		seen[se.Source] = true
		if p, ok := c.registry.Get(se.Source); ok {
			failed = append(failed, p)
		}
	}
	if len(failed) == 0 {
		return prev, nil
	}

	c.logger.Info("retrying failed sources", zap.Int("sources", len(failed)))

	raw := c.fanOut(ctx, failed, params, opts.Timeout)

	// прежние успехи участвуют в общем конвейере как синтетические
	// результаты: дедуп и сортировка тогда видят полный набор
	raw = append(raw, regroupBySource(prev)...)

	result := c.assemble(params, raw, start)
	if !result.PartialResults {
		c.cache.Set(params, result.Opportunities, cache.Metadata{
			TotalResults: result.TotalResults,
			Sources:      result.Sources,
			ResponseTime: result.ResponseTime,
		}, 0)
	}

	c.logRun(params, result)
	if c.metrics != nil {
		c.metrics.RecordSearch("retry", searchStatus(result), time.Since(start))
	}
	return result, nil
}

func regroupBySource(prev *domain.SearchResult) []domain.ProviderResult {
	bySource := make(map[string][]domain.Opportunity)
	var order []string
	for _, o := range prev.Opportunities {
		if _, ok := bySource[o.Source]; !ok {
			order = append(order, o.Source)
		}
		bySource[o.Source] = append(bySource[o.Source], o)
	}

	out := make([]domain.ProviderResult, 0, len(order))
	for _, src := range order {
		out = append(out, domain.ProviderResult{
			Source:        src,
			Opportunities: bySource[src],
			Success:       true,
		})
	}
	return out
}

// PerformSmartSearch принимает сырой пользовательский ввод локаций;
// одиночная локация - это частный случай мультилокационного прогона
// с одной группой.
func (c *Controller) PerformSmartSearch(ctx context.Context, locationInput string, base domain.SearchParameters, opts Options) (*domain.MultiSearchResult, error) {
	return c.PerformMultiLocationSearch(ctx, locationInput, base, opts)
}

// PerformMultiLocationSearch - явный мультилокационный прогон:
// валидация ввода, геокодинг, поиск по каждой локации
func (c *Controller) PerformMultiLocationSearch(ctx context.Context, locationInput string, base domain.SearchParameters, opts Options) (*domain.MultiSearchResult, error) {
	return c.multi.Search(ctx, locationInput, base, opts)
}

// MultiLocation отдаёт мультилокационный сервис для прямого доступа
// (валидация ввода, геокодинг без поиска)
func (c *Controller) MultiLocation() *MultiLocationService {
	return c.multi
}

func searchStatus(r *domain.SearchResult) string {
	switch {
	case len(r.Errors) == 0:
		return "success"
	case r.PartialResults && len(r.Opportunities) > 0:
		return "partial"
	default:
		return "failed"
	}
}

// logRun пишет журнальную запись о прогоне асинхронно и best-effort:
// отказ хранилища не влияет на ответ
func (c *Controller) logRun(params domain.SearchParameters, result *domain.SearchResult) {
	if c.searchLog == nil {
		return
	}

	run := &domain.SearchRun{
		ID:           uuid.NewString(),
		LocationKey:  cache.Key(params),
		Sources:      result.Sources,
		TotalResults: result.TotalResults,
		ErrorCount:   len(result.Errors),
		Partial:      result.PartialResults,
		FromCache:    result.FromCache,
		Duration:     result.ResponseTime,
		CreatedAt:    time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), logRunTimeout)
		defer cancel()
		if err := c.searchLog.Create(ctx, run); err != nil {
			c.logger.Warn("failed to log search run", zap.Error(err))
		}
	}()
}
