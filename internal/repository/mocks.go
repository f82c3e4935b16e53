package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/voluntr/oppsearch/internal/domain"
)

type MockSearchLogRepository struct {
	mu   sync.RWMutex
	runs []domain.SearchRun

	CreateErr error // подставная ошибка для тестов best-effort записи
}

func NewMockSearchLogRepository() *MockSearchLogRepository {
	return &MockSearchLogRepository{}
}

func (m *MockSearchLogRepository) Create(ctx context.Context, run *domain.SearchRun) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *MockSearchLogRepository) Recent(ctx context.Context, limit int) ([]domain.SearchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SearchRun, len(m.runs))
	copy(out, m.runs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSearchLogRepository) CountByLocationKey(ctx context.Context, locationKey string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		if run.LocationKey == locationKey {
			count++
		}
	}
	return count, nil
}

// All - все записи в порядке вставки (для проверок в тестах)
func (m *MockSearchLogRepository) All() []domain.SearchRun {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SearchRun, len(m.runs))
	copy(out, m.runs)
	return out
}

type MockProviderConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*domain.ProviderConfig
}

func NewMockProviderConfigRepository() *MockProviderConfigRepository {
	return &MockProviderConfigRepository{
		configs: make(map[string]*domain.ProviderConfig),
	}
}

func (m *MockProviderConfigRepository) Upsert(ctx context.Context, cfg *domain.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *cfg
	m.configs[cfg.Name] = &stored
	return nil
}

func (m *MockProviderConfigRepository) GetByName(ctx context.Context, name string) (*domain.ProviderConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[name]
	if !ok {
		return nil, domain.ErrProviderConfigNotFound
	}
	out := *cfg
	return &out, nil
}

func (m *MockProviderConfigRepository) List(ctx context.Context) ([]domain.ProviderConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ProviderConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
