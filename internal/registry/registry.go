package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/provider"
)

var ErrNotRegistered = errors.New("provider not registered")

// HealthStatus - последнее известное состояние одного провайдера
type HealthStatus struct {
	Name        string    `json:"name"`
	Healthy     bool      `json:"healthy"`
	Checked     bool      `json:"checked"`
	LastChecked time.Time `json:"lastChecked,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type healthState struct {
	checked     bool
	healthy     bool
	lastChecked time.Time
	lastErr     string
}

// Registry хранит зарегистрированных провайдеров и их здоровье.
// Состояние только в памяти, персистентности нет.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider.Provider
	order     []string // порядок регистрации
	health    map[string]healthState
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		providers: make(map[string]provider.Provider),
		health:    make(map[string]healthState),
		logger:    logger,
	}
}

func (r *Registry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p

	r.logger.Info("provider registered", zap.String("provider", name))
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return
	}
	delete(r.providers, name)
	delete(r.health, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("provider unregistered", zap.String("provider", name))
}

func (r *Registry) Get(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// All - все провайдеры в порядке регистрации
func (r *Registry) All() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Healthy - провайдеры, чей последний пробник прошёл либо которых ещё
// не проверяли (оптимистичный дефолт)
func (r *Registry) Healthy() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Provider, 0, len(r.order))
	for _, name := range r.order {
		st := r.health[name]
		if !st.checked || st.healthy {
			out = append(out, r.providers[name])
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// CheckHealth дёргает лёгкий пробник провайдера под своим дедлайном.
// Неудача помечает провайдера нездоровым до следующего успешного пробника.
func (r *Registry) CheckHealth(ctx context.Context, name string, timeout time.Duration) error {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := p.HealthCheck(ctx)

	r.mu.Lock()
	st := healthState{
		checked:     true,
		healthy:     err == nil,
		lastChecked: time.Now(),
	}
	if err != nil {
		st.lastErr = err.Error()
	}
	r.health[name] = st
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("provider health check failed",
			zap.String("provider", name),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// CheckAll пробует все зарегистрированные провайдеры параллельно
func (r *Registry) CheckAll(ctx context.Context, timeout time.Duration) []HealthStatus {
	names := make([]string, 0)
	r.mu.RLock()
	names = append(names, r.order...)
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_ = r.CheckHealth(ctx, n, timeout) // ошибка уже записана в health
		}(name)
	}
	wg.Wait()

	return r.Statuses()
}

// Statuses - снимок состояния всех провайдеров в порядке регистрации
func (r *Registry) Statuses() []HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HealthStatus, 0, len(r.order))
	for _, name := range r.order {
		st := r.health[name]
		out = append(out, HealthStatus{
			Name:        name,
			Healthy:     !st.checked || st.healthy,
			Checked:     st.checked,
			LastChecked: st.lastChecked,
			Error:       st.lastErr,
		})
	}
	return out
}
