package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voluntr/oppsearch/internal/domain"
)

const coordPrecision = 4 // знаков после запятой в ключе

// Metadata - сводка результата, хранится рядом с данными
type Metadata struct {
	TotalResults int           `json:"totalResults"`
	Sources      []string      `json:"sources"`
	ResponseTime time.Duration `json:"responseTime"`
}

// Entry - снимок одной записи кеша (для интроспекции)
type Entry struct {
	Key          string
	Params       domain.SearchParameters
	Data         []domain.Opportunity
	Metadata     Metadata
	Timestamp    time.Time
	TTL          time.Duration
	AccessCount  int
	LastAccessed time.Time
}

type entry struct {
	params       domain.SearchParameters
	data         []domain.Opportunity
	metadata     Metadata
	timestamp    time.Time
	ttl          time.Duration
	accessCount  int
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.timestamp.Add(e.ttl))
}

// Stats - счётчики кеша
type Stats struct {
	Entries   int       `json:"entries"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	HitRate   float64   `json:"hitRate"`
	SizeBytes int       `json:"sizeBytes"` // приблизительно, по JSON
	Oldest    time.Time `json:"oldest,omitempty"`
	Newest    time.Time `json:"newest,omitempty"`
}

// Filter - частичный предикат для инвалидации
type Filter struct {
	Location    *domain.Coordinates
	RadiusMiles *float64
	Causes      []string
}

// ResultsCache - кеш результатов поиска с TTL, LRU-вытеснением и
// инвалидацией по предикату. Каждый Set заменяет запись целиком,
// гонка read-then-write на одном ключе стоит лишнего похода к
// провайдерам, но запись не портит.
type ResultsCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	defaultTTL time.Duration
	maxSize    int
	hits       int64
	misses     int64
}

func New(defaultTTL time.Duration, maxSize int) *ResultsCache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 50
	}
	return &ResultsCache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}
}

// Key - чистая функция от параметров поиска: координаты с фиксированной
// точностью, радиус, тип, лимит и отсортированные причины. Порядок
// причин и полей на ключ не влияет.
func Key(params domain.SearchParameters) string {
	causes := make([]string, len(params.Causes))
	copy(causes, params.Causes)
	sort.Strings(causes)

	return fmt.Sprintf("%.*f,%.*f|r=%.1f|t=%s|l=%d|c=%s",
		coordPrecision, params.Location.Lat,
		coordPrecision, params.Location.Lng,
		params.RadiusMiles,
		params.Type,
		params.Limit,
		strings.Join(causes, ","),
	)
}

// Get возвращает данные и отмечает доступ. Просроченная запись
// удаляется на месте и считается промахом.
func (c *ResultsCache) Get(params domain.SearchParameters) ([]domain.Opportunity, bool) {
	key := Key(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	c.hits++
	return e.data, true
}

func (c *ResultsCache) Has(params domain.SearchParameters) bool {
	key := Key(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && !e.expired(time.Now())
}

// GetEntry - снимок записи без влияния на счётчики и LRU
func (c *ResultsCache) GetEntry(params domain.SearchParameters) (*Entry, bool) {
	key := Key(params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return &Entry{
		Key:          key,
		Params:       e.params,
		Data:         e.data,
		Metadata:     e.metadata,
		Timestamp:    e.timestamp,
		TTL:          e.ttl,
		AccessCount:  e.accessCount,
		LastAccessed: e.lastAccessed,
	}, true
}

// Set: сначала чистим просроченное, затем при переполнении вытесняем
// самую давно не читанную запись, затем вставляем новую.
func (c *ResultsCache) Set(params domain.SearchParameters, data []domain.Opportunity, md Metadata, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := Key(params)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = &entry{
		params:       params,
		data:         data,
		metadata:     md,
		timestamp:    now,
		ttl:          ttl,
		accessCount:  1,
		lastAccessed: now,
	}
}

func (c *ResultsCache) evictLRU() {
	var lruKey string
	var lruTime time.Time
	for k, e := range c.entries {
		if lruKey == "" || e.lastAccessed.Before(lruTime) {
			lruKey = k
			lruTime = e.lastAccessed
		}
	}
	if lruKey != "" {
		delete(c.entries, lruKey)
	}
}

// Invalidate удаляет записи, совпавшие с заполненными полями фильтра,
// и возвращает их число. Совпадение по location - с точностью ключа.
func (c *ResultsCache) Invalidate(f Filter) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if matches(e.params, f) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func matches(params domain.SearchParameters, f Filter) bool {
	if f.Location != nil {
		if roundCoord(params.Location.Lat) != roundCoord(f.Location.Lat) ||
			roundCoord(params.Location.Lng) != roundCoord(f.Location.Lng) {
			return false
		}
	}
	if f.RadiusMiles != nil && params.RadiusMiles != *f.RadiusMiles {
		return false
	}
	if len(f.Causes) > 0 {
		have := make(map[string]bool, len(params.Causes))
		for _, cz := range params.Causes {
			have[strings.ToLower(cz)] = true
		}
		for _, cz := range f.Causes {
			if !have[strings.ToLower(cz)] {
				return false
			}
		}
	}
	return true
}

func roundCoord(v float64) string {
	return fmt.Sprintf("%.*f", coordPrecision, v)
}

func (c *ResultsCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Configure меняет TTL по умолчанию и размер; лишние записи вытесняются сразу
func (c *ResultsCache) Configure(defaultTTL time.Duration, maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if defaultTTL > 0 {
		c.defaultTTL = defaultTTL
	}
	if maxSize > 0 {
		c.maxSize = maxSize
		for len(c.entries) > c.maxSize {
			c.evictLRU()
		}
	}
}

func (c *ResultsCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}

	for _, e := range c.entries {
		if b, err := json.Marshal(e.data); err == nil {
			st.SizeBytes += len(b)
		}
		if st.Oldest.IsZero() || e.timestamp.Before(st.Oldest) {
			st.Oldest = e.timestamp
		}
		if e.timestamp.After(st.Newest) {
			st.Newest = e.timestamp
		}
	}
	return st
}

// SearchFunc выполняет поиск при прогреве кеша
type SearchFunc func(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, Metadata, error)

// Warm предзаполняет кеш по списку параметров. Ошибки отдельных
// локаций проглатываются; возвращает число успешно прогретых.
func (c *ResultsCache) Warm(ctx context.Context, paramsList []domain.SearchParameters, fn SearchFunc) int {
	var mu sync.Mutex
	warmed := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, params := range paramsList {
		params := params
		g.Go(func() error {
			data, md, err := fn(ctx, params)
			if err != nil {
				return nil // частичный прогрев - не ошибка
			}
			c.Set(params, data, md, 0)
			mu.Lock()
			warmed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return warmed
}
