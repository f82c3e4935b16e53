package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voluntr/oppsearch/internal/domain"
)

func TestMockSearchLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockSearchLogRepository()

	now := time.Now()
	runs := []domain.SearchRun{
		{ID: "1", LocationKey: "ny", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "2", LocationKey: "ny", CreatedAt: now.Add(-time.Hour)},
		{ID: "3", LocationKey: "boston", CreatedAt: now},
	}
	for i := range runs {
		if err := repo.Create(ctx, &runs[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() got %d runs, want 2", len(recent))
	}
	if recent[0].ID != "3" || recent[1].ID != "2" {
		t.Errorf("Recent() order = [%s %s], want newest first", recent[0].ID, recent[1].ID)
	}

	count, err := repo.CountByLocationKey(ctx, "ny")
	if err != nil {
		t.Fatalf("CountByLocationKey() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountByLocationKey() = %d, want 2", count)
	}

	repo.CreateErr = errors.New("db down")
	if err := repo.Create(ctx, &domain.SearchRun{ID: "4"}); err == nil {
		t.Error("Create() with injected error should fail")
	}
}

func TestMockProviderConfigRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockProviderConfigRepository()

	if _, err := repo.GetByName(ctx, "VolunteerHub"); !errors.Is(err, domain.ErrProviderConfigNotFound) {
		t.Errorf("GetByName() error = %v, want ErrProviderConfigNotFound", err)
	}

	cfg := &domain.ProviderConfig{Name: "VolunteerHub", PerMinute: 10, Enabled: true}
	if err := repo.Upsert(ctx, cfg); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// мутация исходника не должна менять сохранённое
	cfg.PerMinute = 99

	found, err := repo.GetByName(ctx, "VolunteerHub")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if found.PerMinute != 10 {
		t.Errorf("PerMinute = %d, want 10 (stored copy)", found.PerMinute)
	}

	repo.Upsert(ctx, &domain.ProviderConfig{Name: "Idealist"})
	repo.Upsert(ctx, &domain.ProviderConfig{Name: "JustServe"})

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() got %d configs, want 3", len(list))
	}
	if list[0].Name != "Idealist" || list[2].Name != "VolunteerHub" {
		t.Errorf("List() not sorted by name: %v", []string{list[0].Name, list[1].Name, list[2].Name})
	}
}
