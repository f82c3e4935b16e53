package geo

import (
	"context"
	"errors"

	"github.com/voluntr/oppsearch/internal/domain"
)

var (
	ErrNoResults = errors.New("no geocoding results")

	// ошибки геолокации в браузерной классификации
	ErrPermissionDenied    = errors.New("permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrLocationTimeout     = errors.New("location timeout")
	ErrNotSupported        = errors.New("geolocation not supported")
)

// Suggestion - подсказка автодополнения локации
type Suggestion struct {
	DisplayName string             `json:"displayName"`
	Coordinates domain.Coordinates `json:"coordinates"`
}

// Geocoder - внешний геокодер. Реализация сама отвечает за свой
// троттлинг и кеш, независимо от кеша результатов поиска.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (domain.Coordinates, domain.LocationInfo, error)
	ReverseGeocode(ctx context.Context, c domain.Coordinates) (domain.LocationInfo, error)
	Suggest(ctx context.Context, text string, limit int) ([]Suggestion, error)
}

// Position - текущее местоположение пользователя
type Position struct {
	Coordinates domain.Coordinates
	Accuracy    float64 // метры
}

// LocateOptions - опции одной попытки определения местоположения
type LocateOptions struct {
	HighAccuracy bool
	TimeoutMs    int
	MaxAgeMs     int
}

// Locator - внешний источник геолокации пользователя (браузер, GPS)
type Locator interface {
	CurrentLocation(ctx context.Context, opts LocateOptions) (Position, error)
}

// FallbackLocate пробует стратегии с постепенно ослабляемой точностью,
// пока одна не сработает. Отказ в доступе не ретраится.
func FallbackLocate(ctx context.Context, l Locator) (Position, error) {
	strategies := []LocateOptions{
		{HighAccuracy: true, TimeoutMs: 5000, MaxAgeMs: 0},
		{HighAccuracy: false, TimeoutMs: 10000, MaxAgeMs: 60000},
		{HighAccuracy: false, TimeoutMs: 15000, MaxAgeMs: 300000},
	}

	var lastErr error
	for _, opts := range strategies {
		pos, err := l.CurrentLocation(ctx, opts)
		if err == nil {
			return pos, nil
		}
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotSupported) {
			return Position{}, err
		}
		lastErr = err
	}
	return Position{}, lastErr
}
