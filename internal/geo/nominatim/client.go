package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/geo"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
	MinDelay  time.Duration // между запросами; Nominatim требует >= 1s
}

// Client - геокодер поверх Nominatim. Владеет собственным троттлингом
// (один запрос в MinDelay) и маленьким TTL-кешем, отдельным от кеша
// результатов поиска.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
	cacheTTL  time.Duration
	minDelay  time.Duration

	mu       sync.Mutex
	lastCall time.Time
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	coords    domain.Coordinates
	info      domain.LocationInfo
	expiresAt time.Time
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "oppsearch/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		cacheTTL:  cfg.CacheTTL,
		minDelay:  cfg.MinDelay,
		cache:     make(map[string]cacheEntry),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (c *Client) Geocode(ctx context.Context, text string) (domain.Coordinates, domain.LocationInfo, error) {
	key := "geocode:" + text
	if coords, info, ok := c.cached(key); ok {
		return coords, info, nil
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")

	var places []place
	if err := c.get(ctx, "/search?"+q.Encode(), &places); err != nil {
		return domain.Coordinates{}, domain.LocationInfo{}, fmt.Errorf("%w: %v", domain.ErrGeocodingFailed, err)
	}
	if len(places) == 0 {
		return domain.Coordinates{}, domain.LocationInfo{}, fmt.Errorf("%w: %q: %v", domain.ErrGeocodingFailed, text, geo.ErrNoResults)
	}

	coords, info, err := toResult(places[0])
	if err != nil {
		return domain.Coordinates{}, domain.LocationInfo{}, fmt.Errorf("%w: %v", domain.ErrGeocodingFailed, err)
	}

	c.store(key, coords, info)
	return coords, info, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, coords domain.Coordinates) (domain.LocationInfo, error) {
	key := fmt.Sprintf("reverse:%.4f,%.4f", coords.Lat, coords.Lng)
	if _, info, ok := c.cached(key); ok {
		return info, nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coords.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(coords.Lng, 'f', 6, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	var p place
	if err := c.get(ctx, "/reverse?"+q.Encode(), &p); err != nil {
		return domain.LocationInfo{}, fmt.Errorf("%w: %v", domain.ErrGeocodingFailed, err)
	}

	_, info, err := toResult(p)
	if err != nil {
		return domain.LocationInfo{}, fmt.Errorf("%w: %v", domain.ErrGeocodingFailed, err)
	}

	c.store(key, coords, info)
	return info, nil
}

func (c *Client) Suggest(ctx context.Context, text string, limit int) ([]geo.Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))

	var places []place
	if err := c.get(ctx, "/search?"+q.Encode(), &places); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeocodingFailed, err)
	}

	suggestions := make([]geo.Suggestion, 0, len(places))
	for _, p := range places {
		coords, _, err := toResult(p)
		if err != nil {
			continue
		}
		suggestions = append(suggestions, geo.Suggestion{
			DisplayName: p.DisplayName,
			Coordinates: coords,
		})
	}
	return suggestions, nil
}

// get троттлит запросы и декодирует JSON-ответ в out
func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minDelay - time.Since(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) cached(key string) (domain.Coordinates, domain.LocationInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[key]
	if !ok || time.Now().After(e.expiresAt) {
		return domain.Coordinates{}, domain.LocationInfo{}, false
	}
	return e.coords, e.info, true
}

func (c *Client) store(key string, coords domain.Coordinates, info domain.LocationInfo) {
	c.mu.Lock()
	c.cache[key] = cacheEntry{coords: coords, info: info, expiresAt: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()
}

func toResult(p place) (domain.Coordinates, domain.LocationInfo, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Coordinates{}, domain.LocationInfo{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Coordinates{}, domain.LocationInfo{}, fmt.Errorf("parse lon: %w", err)
	}

	city := p.Address.City
	if city == "" {
		city = p.Address.Town
	}
	if city == "" {
		city = p.Address.Village
	}

	return domain.Coordinates{Lat: lat, Lng: lon}, domain.LocationInfo{
		City:        city,
		State:       p.Address.State,
		Country:     p.Address.Country,
		DisplayName: p.DisplayName,
	}, nil
}
