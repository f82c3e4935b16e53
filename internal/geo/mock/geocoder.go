package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/geo"
)

// Geocoder - геокодер для тестов: фиксированная таблица локаций
type Geocoder struct {
	Known map[string]domain.Coordinates
	Infos map[string]domain.LocationInfo
	Err   error

	// FailFor - локации (lowercase), для которых геокодинг падает
	FailFor map[string]bool

	CallCount int
	AllInputs []string

	mu sync.Mutex
}

func New() *Geocoder {
	return &Geocoder{
		Known:   make(map[string]domain.Coordinates),
		Infos:   make(map[string]domain.LocationInfo),
		FailFor: make(map[string]bool),
	}
}

func (g *Geocoder) WithLocation(name string, coords domain.Coordinates) *Geocoder {
	g.Known[strings.ToLower(name)] = coords
	return g
}

func (g *Geocoder) WithFailure(name string) *Geocoder {
	g.FailFor[strings.ToLower(name)] = true
	return g
}

func (g *Geocoder) WithError(err error) *Geocoder {
	g.Err = err
	return g
}

func (g *Geocoder) Geocode(ctx context.Context, text string) (domain.Coordinates, domain.LocationInfo, error) {
	g.mu.Lock()
	g.CallCount++
	g.AllInputs = append(g.AllInputs, text)
	g.mu.Unlock()

	if g.Err != nil {
		return domain.Coordinates{}, domain.LocationInfo{}, g.Err
	}

	key := strings.ToLower(strings.TrimSpace(text))
	if g.FailFor[key] {
		return domain.Coordinates{}, domain.LocationInfo{}, domain.ErrGeocodingFailed
	}
	if coords, ok := g.Known[key]; ok {
		info, infoOk := g.Infos[key]
		if !infoOk {
			info = domain.LocationInfo{City: text, DisplayName: text}
		}
		return coords, info, nil
	}
	return domain.Coordinates{}, domain.LocationInfo{}, domain.ErrGeocodingFailed
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, c domain.Coordinates) (domain.LocationInfo, error) {
	if g.Err != nil {
		return domain.LocationInfo{}, g.Err
	}
	return domain.LocationInfo{DisplayName: "reverse"}, nil
}

func (g *Geocoder) Suggest(ctx context.Context, text string, limit int) ([]geo.Suggestion, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	var out []geo.Suggestion
	for name, coords := range g.Known {
		if strings.HasPrefix(name, strings.ToLower(text)) {
			out = append(out, geo.Suggestion{DisplayName: name, Coordinates: coords})
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
