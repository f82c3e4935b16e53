package provider

import (
	"context"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/retry"
)

// Известные источники. Имя провайдера участвует в скоринге надёжности
// при дедупликации, поэтому константы живут здесь.
const (
	SourceVolunteerHub = "VolunteerHub"
	SourceJustServe    = "JustServe"
	SourceIdealist     = "Idealist"
)

// Provider - один внешний источник волонтёрских предложений.
// Каждый адаптер владеет своим wire-форматом, base URL и auth-заголовком;
// наружу отдаёт только нормализованные Opportunity.
type Provider interface {
	Name() string
	Search(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, error)
	Details(ctx context.Context, id string) (*domain.Opportunity, error)
	HealthCheck(ctx context.Context) error
	RateLimit() ratelimit.Config
	Retry() retry.Config
}
