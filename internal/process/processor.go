package process

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/domain"
)

// Options - каждый шаг конвейера можно выключить отдельно
type Options struct {
	SkipDistance     bool
	SkipRadiusFilter bool
	SkipDedup        bool
	SkipEnrich       bool
	SkipSort         bool
}

// Stats - что сделал один прогон конвейера
type Stats struct {
	OriginalCount     int
	DuplicatesRemoved int
	EnrichedCount     int
	FinalCount        int
	ProcessingTime    time.Duration
}

// Processor - чистый конвейер над сырыми результатами провайдеров:
// flatten -> дистанция -> радиус -> дедуп -> обогащение -> сортировка.
// Входные ProviderResult не мутируются.
type Processor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

func (p *Processor) Process(results []domain.ProviderResult, origin domain.Coordinates, maxDistance float64, opts Options) ([]domain.Opportunity, Stats) {
	start := time.Now()
	var stats Stats

	opps := flatten(results)
	stats.OriginalCount = len(opps)

	if !opts.SkipDistance {
		annotateDistances(opps, origin)
	}
	if !opts.SkipRadiusFilter && maxDistance > 0 {
		opps = filterByRadius(opps, maxDistance)
	}
	if !opts.SkipDedup {
		before := len(opps)
		opps = deduplicate(opps)
		stats.DuplicatesRemoved = before - len(opps)
	}
	if !opts.SkipEnrich {
		stats.EnrichedCount = enrich(opps)
	}
	if !opts.SkipSort {
		sortOpportunities(opps)
	}

	stats.FinalCount = len(opps)
	stats.ProcessingTime = time.Since(start)

	p.logger.Debug("results processed",
		zap.Int("original", stats.OriginalCount),
		zap.Int("duplicates_removed", stats.DuplicatesRemoved),
		zap.Int("final", stats.FinalCount),
	)

	return opps, stats
}

// flatten собирает предложения успешных провайдеров
func flatten(results []domain.ProviderResult) []domain.Opportunity {
	var out []domain.Opportunity
	for _, r := range results {
		if !r.Success {
			continue
		}
		out = append(out, r.Opportunities...)
	}
	return out
}

// annotateDistances считает расстояние от точки поиска для каждого
// не-виртуального предложения с координатами. Без координат - без изменений.
func annotateDistances(opps []domain.Opportunity, origin domain.Coordinates) {
	for i := range opps {
		if opps[i].Virtual() {
			opps[i].Distance = nil
			continue
		}
		if opps[i].Coordinates == nil {
			continue
		}
		d := Haversine(origin, *opps[i].Coordinates)
		d = math.Round(d*10) / 10
		opps[i].Distance = &d
	}
}

// filterByRadius отбрасывает не-виртуальные предложения дальше maxDistance.
// Виртуальные и предложения без координат остаются.
func filterByRadius(opps []domain.Opportunity, maxDistance float64) []domain.Opportunity {
	out := opps[:0]
	for _, o := range opps {
		if !o.Virtual() && o.Distance != nil && *o.Distance > maxDistance {
			continue
		}
		out = append(out, o)
	}
	return out
}

const earthRadiusMiles = 3958.8

// Haversine - расстояние по большому кругу в милях
func Haversine(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// sortOpportunities: виртуальные первыми, дальше по возрастанию дистанции,
// без дистанции - в конец, при равенстве - по названию
func sortOpportunities(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]

		if a.Virtual() != b.Virtual() {
			return a.Virtual()
		}

		da, db := distanceOrInf(a), distanceOrInf(b)
		if da != db {
			return da < db
		}

		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
}

func distanceOrInf(o domain.Opportunity) float64 {
	if o.Distance == nil {
		return math.Inf(1)
	}
	return *o.Distance
}
