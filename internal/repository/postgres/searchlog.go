package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/voluntr/oppsearch/internal/domain"
)

type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

func (r *SearchLogRepo) Create(ctx context.Context, run *domain.SearchRun) error {
	query := `
        INSERT INTO search_runs (id, location_key, sources, total_results, error_count, partial, from_cache, duration_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := r.db.Pool.Exec(ctx, query,
		run.ID,
		run.LocationKey,
		run.Sources,
		run.TotalResults,
		run.ErrorCount,
		run.Partial,
		run.FromCache,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create search run: %w", err)
	}
	return nil
}

func (r *SearchLogRepo) Recent(ctx context.Context, limit int) ([]domain.SearchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, location_key, sources, total_results, error_count, partial, from_cache, duration_ms, created_at
        FROM search_runs
        ORDER BY created_at DESC
        LIMIT $1
    `

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent search runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SearchRun
	for rows.Next() {
		var run domain.SearchRun
		var durationMs int64
		if err := rows.Scan(
			&run.ID,
			&run.LocationKey,
			&run.Sources,
			&run.TotalResults,
			&run.ErrorCount,
			&run.Partial,
			&run.FromCache,
			&durationMs,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search runs: %w", err)
	}
	return runs, nil
}

func (r *SearchLogRepo) CountByLocationKey(ctx context.Context, locationKey string) (int, error) {
	query := `SELECT COUNT(*) FROM search_runs WHERE location_key = $1`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, locationKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("count search runs: %w", err)
	}
	return count, nil
}
