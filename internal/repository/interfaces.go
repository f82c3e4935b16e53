package repository

import (
	"context"

	"github.com/voluntr/oppsearch/internal/domain"
)

// SearchLogRepository - журнал завершённых прогонов поиска.
// Запись best-effort: ядро работает и без хранилища.
type SearchLogRepository interface {
	Create(ctx context.Context, run *domain.SearchRun) error
	Recent(ctx context.Context, limit int) ([]domain.SearchRun, error)
	CountByLocationKey(ctx context.Context, locationKey string) (int, error)
}

// ProviderConfigRepository - персистентные настройки провайдеров
// (ключи, лимиты, политика ретраев), ключ - имя провайдера
type ProviderConfigRepository interface {
	Upsert(ctx context.Context, cfg *domain.ProviderConfig) error
	GetByName(ctx context.Context, name string) (*domain.ProviderConfig, error)
	List(ctx context.Context) ([]domain.ProviderConfig, error)
}
