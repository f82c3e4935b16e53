package postgres

import (
	"context"
	"fmt"
)

// schema поднимается при старте; ALTER-миграций нет, таблицы
// создаются идемпотентно
const schema = `
CREATE TABLE IF NOT EXISTS search_runs (
    id            TEXT PRIMARY KEY,
    location_key  TEXT NOT NULL,
    sources       TEXT[] NOT NULL DEFAULT '{}',
    total_results INT NOT NULL DEFAULT 0,
    error_count   INT NOT NULL DEFAULT 0,
    partial       BOOLEAN NOT NULL DEFAULT FALSE,
    from_cache    BOOLEAN NOT NULL DEFAULT FALSE,
    duration_ms   BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_search_runs_location_key ON search_runs (location_key);
CREATE INDEX IF NOT EXISTS idx_search_runs_created_at ON search_runs (created_at DESC);

CREATE TABLE IF NOT EXISTS provider_configs (
    name          TEXT PRIMARY KEY,
    base_url      TEXT NOT NULL DEFAULT '',
    api_key       TEXT NOT NULL DEFAULT '',
    per_minute    INT NOT NULL DEFAULT 0,
    per_hour      INT NOT NULL DEFAULT 0,
    max_retries   INT NOT NULL DEFAULT 0,
    base_delay_ms BIGINT NOT NULL DEFAULT 0,
    max_delay_ms  BIGINT NOT NULL DEFAULT 0,
    multiplier    DOUBLE PRECISION NOT NULL DEFAULT 0,
    enabled       BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func (db *DB) Bootstrap(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}
