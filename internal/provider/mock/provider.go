package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/ratelimit"
	"github.com/voluntr/oppsearch/internal/retry"
)

// Provider - управляемый провайдер для тестов
type Provider struct {
	ProviderName  string
	Opportunities []domain.Opportunity
	Err           error
	HealthErr     error
	Delay         time.Duration
	Limits        ratelimit.Config
	RetryCfg      retry.Config

	// Errs - скрипт ошибок по вызовам; когда кончается, действует Err
	Errs []error

	CallCount   int
	LastParams  domain.SearchParameters
	AllParams   []domain.SearchParameters
	HealthCalls int

	mu sync.Mutex
}

func New(name string) *Provider {
	return &Provider{ProviderName: name}
}

func (p *Provider) WithOpportunities(opps []domain.Opportunity) *Provider {
	p.Opportunities = opps
	return p
}

func (p *Provider) WithError(err error) *Provider {
	p.Err = err
	return p
}

func (p *Provider) WithErrorScript(errs ...error) *Provider {
	p.Errs = errs
	return p
}

func (p *Provider) WithDelay(delay time.Duration) *Provider {
	p.Delay = delay
	return p
}

func (p *Provider) WithHealthError(err error) *Provider {
	p.HealthErr = err
	return p
}

func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) Search(ctx context.Context, params domain.SearchParameters) ([]domain.Opportunity, error) {
	p.mu.Lock()
	call := p.CallCount
	p.CallCount++
	p.LastParams = params
	p.AllParams = append(p.AllParams, params)
	delay := p.Delay
	err := p.Err
	if call < len(p.Errs) {
		err = p.Errs[call]
	}
	opps := p.Opportunities
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	out := make([]domain.Opportunity, len(opps))
	copy(out, opps)
	return out, nil
}

func (p *Provider) Details(ctx context.Context, id string) (*domain.Opportunity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	for i := range p.Opportunities {
		if p.Opportunities[i].ID == id {
			o := p.Opportunities[i]
			return &o, nil
		}
	}
	return nil, domain.ErrOpportunityNotFound
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	p.HealthCalls++
	err := p.HealthErr
	delay := p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (p *Provider) RateLimit() ratelimit.Config { return p.Limits }
func (p *Provider) Retry() retry.Config         { return p.RetryCfg }

func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount = 0
	p.HealthCalls = 0
	p.LastParams = domain.SearchParameters{}
	p.AllParams = nil
}
