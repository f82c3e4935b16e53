package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/domain"
)

// Config - политика повторов одного провайдера
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Delay - задержка перед попыткой attempt (нумерация с нуля):
// min(base * multiplier^attempt, max)
func (c Config) Delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt)))
	if d > c.MaxDelay || d <= 0 {
		return c.MaxDelay
	}
	return d
}

// Executor оборачивает вызов провайдера ограниченными повторами
// с экспоненциальным бэкоффом. Неповторяемые ошибки (auth, validation)
// не ретраятся ни разу.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Do выполняет op максимум 1+MaxRetries раз. Возвращает nil при успехе,
// иначе классифицированную ошибку последней попытки.
func (e *Executor) Do(ctx context.Context, source string, cfg Config, op func(context.Context) error) *domain.SearchError {
	cfg = cfg.withDefaults()

	var lastErr *domain.SearchError
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Delay(attempt - 1)
			// rate_limit может попросить ждать дольше бэкоффа
			if lastErr != nil && lastErr.RetryAfter > delay {
				delay = lastErr.RetryAfter
			}

			e.logger.Debug("retrying provider call",
				zap.String("source", source),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.Classify(source, ctx.Err())
			case <-timer.C:
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = domain.Classify(source, err)
		if !lastErr.Retryable {
			return lastErr
		}
		if ctx.Err() != nil {
			return domain.Classify(source, ctx.Err())
		}
	}

	return lastErr
}
