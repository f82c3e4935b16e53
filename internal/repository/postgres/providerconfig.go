package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voluntr/oppsearch/internal/domain"
)

type ProviderConfigRepo struct {
	db *DB
}

func NewProviderConfigRepo(db *DB) *ProviderConfigRepo {
	return &ProviderConfigRepo{db: db}
}

func (r *ProviderConfigRepo) Upsert(ctx context.Context, cfg *domain.ProviderConfig) error {
	query := `
        INSERT INTO provider_configs (name, base_url, api_key, per_minute, per_hour, max_retries, base_delay_ms, max_delay_ms, multiplier, enabled, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        ON CONFLICT (name) DO UPDATE SET
            base_url      = EXCLUDED.base_url,
            api_key       = EXCLUDED.api_key,
            per_minute    = EXCLUDED.per_minute,
            per_hour      = EXCLUDED.per_hour,
            max_retries   = EXCLUDED.max_retries,
            base_delay_ms = EXCLUDED.base_delay_ms,
            max_delay_ms  = EXCLUDED.max_delay_ms,
            multiplier    = EXCLUDED.multiplier,
            enabled       = EXCLUDED.enabled,
            updated_at    = NOW()
        RETURNING updated_at
    `

	err := r.db.Pool.QueryRow(ctx, query,
		cfg.Name,
		cfg.BaseURL,
		cfg.APIKey,
		cfg.PerMinute,
		cfg.PerHour,
		cfg.MaxRetries,
		cfg.BaseDelay.Milliseconds(),
		cfg.MaxDelay.Milliseconds(),
		cfg.Multiplier,
		cfg.Enabled,
	).Scan(&cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert provider config: %w", err)
	}
	return nil
}

func (r *ProviderConfigRepo) GetByName(ctx context.Context, name string) (*domain.ProviderConfig, error) {
	query := `
        SELECT name, base_url, api_key, per_minute, per_hour, max_retries, base_delay_ms, max_delay_ms, multiplier, enabled, updated_at
        FROM provider_configs
        WHERE name = $1
    `

	cfg, err := scanProviderConfig(r.db.Pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProviderConfigNotFound
		}
		return nil, fmt.Errorf("get provider config: %w", err)
	}
	return cfg, nil
}

func (r *ProviderConfigRepo) List(ctx context.Context) ([]domain.ProviderConfig, error) {
	query := `
        SELECT name, base_url, api_key, per_minute, per_hour, max_retries, base_delay_ms, max_delay_ms, multiplier, enabled, updated_at
        FROM provider_configs
        ORDER BY name
    `

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.ProviderConfig
	for rows.Next() {
		cfg, err := scanProviderConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider configs: %w", err)
	}
	return configs, nil
}

func scanProviderConfig(row pgx.Row) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	var baseDelayMs, maxDelayMs int64
	err := row.Scan(
		&cfg.Name,
		&cfg.BaseURL,
		&cfg.APIKey,
		&cfg.PerMinute,
		&cfg.PerHour,
		&cfg.MaxRetries,
		&baseDelayMs,
		&maxDelayMs,
		&cfg.Multiplier,
		&cfg.Enabled,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	return &cfg, nil
}
