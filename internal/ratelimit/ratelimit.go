package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Config - лимиты одного провайдера
type Config struct {
	PerMinute int
	PerHour   int
}

// Status - текущее состояние окна по ключу
type Status struct {
	MinuteCount int
	HourCount   int
	PerMinute   int
	PerHour     int
	NextAllowed time.Duration // 0 если запрос разрешён сейчас
}

// Manager - rate limiter на провайдера (sliding window, минутное и часовое окна).
// Конкурентные вызовы по одному ключу видят согласованный лог таймстемпов:
// Record под тем же мьютексом, что и Allow, лишних пропусков сверх лимита нет.
type Manager struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limits   map[string]Config
	fallback Config
}

func NewManager(fallback Config) *Manager {
	if fallback.PerMinute <= 0 {
		fallback.PerMinute = 10
	}
	if fallback.PerHour <= 0 {
		fallback.PerHour = 100
	}

	m := &Manager{
		requests: make(map[string][]time.Time),
		limits:   make(map[string]Config),
		fallback: fallback,
	}
	go m.cleanup()
	return m
}

// SetLimits задаёт лимиты для конкретного ключа (иначе действует fallback)
func (m *Manager) SetLimits(key string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = m.fallback.PerMinute
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = m.fallback.PerHour
	}
	m.limits[key] = cfg
}

func (m *Manager) limitsFor(key string) Config {
	if cfg, ok := m.limits[key]; ok {
		return cfg
	}
	return m.fallback
}

// Allow - разрешён ли запрос сейчас (без записи)
func (m *Manager) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowed(key, time.Now())
}

func (m *Manager) allowed(key string, now time.Time) bool {
	cfg := m.limitsFor(key)
	minute, hour := m.counts(key, now)
	return minute < cfg.PerMinute && hour < cfg.PerHour
}

// counts попутно обрезает записи старше часа
func (m *Manager) counts(key string, now time.Time) (minute, hour int) {
	hourCutoff := now.Add(-hourWindow)
	minuteCutoff := now.Add(-minuteWindow)

	old := m.requests[key]
	fresh := old[:0] // reuse underlying array
	for _, ts := range old {
		if !ts.After(hourCutoff) {
			continue
		}
		fresh = append(fresh, ts)
		if ts.After(minuteCutoff) {
			minute++
		}
	}
	m.requests[key] = fresh
	return minute, len(fresh)
}

// Record фиксирует выполненный запрос
func (m *Manager) Record(key string) {
	m.mu.Lock()
	m.requests[key] = append(m.requests[key], time.Now())
	m.mu.Unlock()
}

// TryAcquire - Allow и Record одной критической секцией
func (m *Manager) TryAcquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.allowed(key, now) {
		return false
	}
	m.requests[key] = append(m.requests[key], now)
	return true
}

// Wait блокируется (кооперативно, без busy-wait) пока запрос не станет
// разрешён, затем сразу записывает его. Ожидание пересчитывается от самого
// старого таймстемпа нарушенного окна.
func (m *Manager) Wait(ctx context.Context, key string) error {
	for {
		m.mu.Lock()
		now := time.Now()
		if m.allowed(key, now) {
			m.requests[key] = append(m.requests[key], now)
			m.mu.Unlock()
			return nil
		}
		wait := m.nextAllowed(key, now)
		m.mu.Unlock()

		if wait <= 0 {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextAllowed - сколько ждать до выхода самого старого запроса из нарушенного окна
func (m *Manager) nextAllowed(key string, now time.Time) time.Duration {
	cfg := m.limitsFor(key)
	ts := m.requests[key]

	var wait time.Duration
	if oldest, n := oldestInWindow(ts, now, minuteWindow); n >= cfg.PerMinute {
		wait = oldest.Add(minuteWindow).Sub(now)
	}
	if oldest, n := oldestInWindow(ts, now, hourWindow); n >= cfg.PerHour {
		if w := oldest.Add(hourWindow).Sub(now); w > wait {
			wait = w
		}
	}
	return wait
}

func oldestInWindow(ts []time.Time, now time.Time, window time.Duration) (time.Time, int) {
	cutoff := now.Add(-window)
	var oldest time.Time
	count := 0
	for _, t := range ts {
		if !t.After(cutoff) {
			continue
		}
		if count == 0 || t.Before(oldest) {
			oldest = t
		}
		count++
	}
	return oldest, count
}

// GetStatus - счётчики, лимиты и время до следующего разрешённого запроса
func (m *Manager) GetStatus(key string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cfg := m.limitsFor(key)
	minute, hour := m.counts(key, now)

	st := Status{
		MinuteCount: minute,
		HourCount:   hour,
		PerMinute:   cfg.PerMinute,
		PerHour:     cfg.PerHour,
	}
	if minute >= cfg.PerMinute || hour >= cfg.PerHour {
		st.NextAllowed = m.nextAllowed(key, now)
	}
	return st
}

// cleanup - фоновая очистка логов старше часа
// TODO: добавить graceful shutdown
func (m *Manager) cleanup() {
	tick := time.NewTicker(5 * time.Minute)
	for range tick.C {
		m.mu.Lock()
		cutoff := time.Now().Add(-hourWindow)
		for key, ts := range m.requests {
			var fresh []time.Time
			for _, t := range ts {
				if t.After(cutoff) {
					fresh = append(fresh, t)
				}
			}
			if len(fresh) == 0 {
				delete(m.requests, key)
			} else {
				m.requests[key] = fresh
			}
		}
		m.mu.Unlock()
	}
}
