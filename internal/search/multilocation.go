package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/geo"
	"github.com/voluntr/oppsearch/internal/metrics"
)

const (
	maxLocations        = 10
	minLocationLength   = 2
	geocodeConcurrency  = 4
	locationConcurrency = 3
)

// SingleSearcher - одиночный поиск по координатам; в проде это
// Controller, в тестах - заглушка
type SingleSearcher interface {
	PerformSearch(ctx context.Context, params domain.SearchParameters, opts Options) (*domain.SearchResult, error)
}

// MultiLocationService разбирает ввод вида "Москва, Санкт-Петербург",
// геокодирует локации параллельно и запускает поиск по каждой,
// группируя результаты.
type MultiLocationService struct {
	geocoder geo.Geocoder
	searcher SingleSearcher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewMultiLocationService(geocoder geo.Geocoder, searcher SingleSearcher, logger *zap.Logger, m *metrics.Metrics) *MultiLocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiLocationService{
		geocoder: geocoder,
		searcher: searcher,
		logger:   logger,
		metrics:  m,
	}
}

// ParseLocationInput режет ввод по запятым, чистит пробелы и убирает
// дубликаты без учёта регистра, сохраняя первое написание и порядок
func ParseLocationInput(text string) []string {
	parts := strings.Split(text, ",")

	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func IsMultiLocationInput(text string) bool {
	return len(ParseLocationInput(text)) > 1
}

// validateLocations - общие проверки разобранного списка: пустота,
// превышение лимита, слишком короткие элементы
func validateLocations(locations []string) error {
	if len(locations) == 0 {
		return domain.ErrEmptyLocation
	}
	if len(locations) > maxLocations {
		return domain.ErrTooManyLocations
	}

	var tooShort []string
	for _, loc := range locations {
		if len([]rune(loc)) < minLocationLength {
			tooShort = append(tooShort, loc)
		}
	}
	if len(tooShort) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrLocationTooShort, strings.Join(tooShort, ", "))
	}
	return nil
}

// ValidateLocationInput проверяет ввод до геокодинга
func ValidateLocationInput(text string) domain.LocationValidation {
	locations := ParseLocationInput(text)
	if err := validateLocations(locations); err != nil {
		return domain.LocationValidation{
			Message:     err.Error(),
			ParsedCount: len(locations),
		}
	}

	v := domain.LocationValidation{Valid: true, ParsedCount: len(locations)}
	if len(locations) > 1 {
		v.Suggestions = []string{
			fmt.Sprintf("Searching %d locations, results will be grouped by location", len(locations)),
			"Multi-location searches may take a bit longer",
		}
	}
	return v
}

// GeocodeLocations геокодирует все локации параллельно. Неудачные
// отбрасываются; ошибка возвращается только если не удалась ни одна.
func (s *MultiLocationService) GeocodeLocations(ctx context.Context, locations []string) ([]domain.ParsedLocation, error) {
	parsed := make([]*domain.ParsedLocation, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geocodeConcurrency)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			coords, info, err := s.geocoder.Geocode(gctx, loc)
			if err != nil {
				if s.metrics != nil {
					s.metrics.RecordGeocodeRequest("error")
				}
				s.logger.Warn("failed to geocode location",
					zap.String("location", loc),
					zap.Error(err),
				)
				return nil // частичный провал геокодинга - не ошибка
			}
			if s.metrics != nil {
				s.metrics.RecordGeocodeRequest("success")
			}
			parsed[i] = &domain.ParsedLocation{
				OriginalInput: loc,
				Info:          info,
				Coordinates:   coords,
				Index:         i,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ParsedLocation, 0, len(locations))
	for _, p := range parsed {
		if p != nil {
			out = append(out, *p)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrAllGeocodingFailed
	}
	return out, nil
}

// Search - полный мультилокационный прогон: валидация и разбор ввода,
// геокодинг, параллельные поиски, группировка и статистика
func (s *MultiLocationService) Search(ctx context.Context, input string, base domain.SearchParameters, opts Options) (*domain.MultiSearchResult, error) {
	start := time.Now()

	locations := ParseLocationInput(input)
	if err := validateLocations(locations); err != nil {
		return nil, err
	}

	parsed, err := s.GeocodeLocations(ctx, locations)
	if err != nil {
		return nil, err
	}

	groups := s.searchLocations(ctx, parsed, base, opts)

	result := &domain.MultiSearchResult{
		Groups:        groups,
		Opportunities: mergeWithLocationContext(groups),
		Statistics:    Statistics(groups),
		ResponseTime:  time.Since(start),
	}
	for _, g := range groups {
		if g.Err != nil {
			result.Errors = append(result.Errors, *g.Err)
		}
	}
	result.PartialResults = len(result.Errors) > 0

	searchType := "multi"
	if len(parsed) == 1 {
		searchType = "single"
	}
	if s.metrics != nil {
		status := "success"
		if result.PartialResults {
			status = "partial"
		}
		s.metrics.RecordSearch(searchType, status, result.ResponseTime)
	}
	s.logger.Info("multi-location search completed",
		zap.Int("locations", len(parsed)),
		zap.Int("successful", result.Statistics.SuccessfulLocations),
		zap.Int("results", result.Statistics.TotalOpportunities),
		zap.Duration("elapsed", result.ResponseTime),
	)
	return result, nil
}

// searchLocations запускает одиночные поиски по локациям параллельно,
// сохраняя порядок ввода в группах
func (s *MultiLocationService) searchLocations(ctx context.Context, parsed []domain.ParsedLocation, base domain.SearchParameters, opts Options) []domain.LocationGroup {
	groups := make([]domain.LocationGroup, len(parsed))

	var wg sync.WaitGroup
	sem := make(chan struct{}, locationConcurrency)
	for i, pl := range parsed {
		wg.Add(1)
		go func(i int, pl domain.ParsedLocation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			params := base
			params.Location = pl.Coordinates
			groups[i] = s.searchOne(ctx, pl, params, opts)
		}(i, pl)
	}
	wg.Wait()

	return groups
}

func (s *MultiLocationService) searchOne(ctx context.Context, pl domain.ParsedLocation, params domain.SearchParameters, opts Options) domain.LocationGroup {
	group := domain.LocationGroup{Location: pl}

	res, err := s.searcher.PerformSearch(ctx, params, opts)
	if err != nil {
		group.Err = domain.Classify(locationLabel(pl), err)
		return group
	}

	group.Opportunities = res.Opportunities
	// локация без единого результата, но с ошибками всех источников -
	// провал; пустой успешный ответ провалом не считается
	if len(res.Opportunities) == 0 && len(res.Errors) > 0 {
		group.Err = &res.Errors[0]
		return group
	}

	// результаты есть, но часть источников упала: группа успешна,
	// ошибка остаётся на ней и делает общий результат частичным
	if len(res.Errors) > 0 {
		group.Err = &res.Errors[0]
	}
	group.SearchSuccess = true
	return group
}

// mergeWithLocationContext сводит группы в плоский список, штампуя
// каждое предложение локацией, из которой оно найдено
func mergeWithLocationContext(groups []domain.LocationGroup) []domain.LocatedOpportunity {
	var out []domain.LocatedOpportunity
	for _, g := range groups {
		if !g.SearchSuccess {
			continue
		}
		for _, o := range g.Opportunities {
			out = append(out, domain.LocatedOpportunity{
				Opportunity:       o,
				SearchLocation:    locationLabel(g.Location),
				SearchCoordinates: g.Location.Coordinates,
				OriginalInput:     g.Location.OriginalInput,
			})
		}
	}
	return out
}

// Statistics пересчитывает агрегат по группам с нуля.
// Среднее округляется до ближайшего целого.
func Statistics(groups []domain.LocationGroup) domain.SearchStatistics {
	st := domain.SearchStatistics{
		TotalLocations:    len(groups),
		LocationBreakdown: make([]domain.LocationCount, 0, len(groups)),
	}

	for _, g := range groups {
		if g.SearchSuccess {
			st.SuccessfulLocations++
			st.TotalOpportunities += len(g.Opportunities)
		} else {
			st.FailedLocations++
		}
		st.LocationBreakdown = append(st.LocationBreakdown, domain.LocationCount{
			Location: locationLabel(g.Location),
			Count:    len(g.Opportunities),
		})
	}

	if st.SuccessfulLocations > 0 {
		avg := float64(st.TotalOpportunities) / float64(st.SuccessfulLocations)
		st.AverageOpportunitiesPerLocation = int(math.Round(avg))
	}
	return st
}

func locationLabel(pl domain.ParsedLocation) string {
	switch {
	case pl.Info.City != "":
		return pl.Info.City
	case pl.Info.DisplayName != "":
		return pl.Info.DisplayName
	default:
		return pl.OriginalInput
	}
}
