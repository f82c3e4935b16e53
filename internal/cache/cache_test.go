package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voluntr/oppsearch/internal/domain"
)

func params(lat, lng float64) domain.SearchParameters {
	return domain.SearchParameters{
		Location:    domain.Coordinates{Lat: lat, Lng: lng},
		RadiusMiles: 25,
		Type:        domain.TypeBoth,
	}
}

func someOpps(n int) []domain.Opportunity {
	out := make([]domain.Opportunity, n)
	for i := range out {
		out[i] = domain.Opportunity{ID: string(rune('a' + i)), Title: "t"}
	}
	return out
}

func TestKey_CauseOrderIndependent(t *testing.T) {
	a := params(40.7128, -74.006)
	a.Causes = []string{"education", "environment"}
	b := params(40.7128, -74.006)
	b.Causes = []string{"environment", "education"}

	if Key(a) != Key(b) {
		t.Errorf("Key() differs on cause order:\n%s\n%s", Key(a), Key(b))
	}
}

func TestKey_DistinguishesParameters(t *testing.T) {
	base := params(40.7128, -74.006)

	other := base
	other.RadiusMiles = 50
	if Key(base) == Key(other) {
		t.Error("Key() should differ on radius")
	}

	other = base
	other.Type = domain.TypeVirtual
	if Key(base) == Key(other) {
		t.Error("Key() should differ on type")
	}

	other = base
	other.Location.Lat = 41.0
	if Key(base) == Key(other) {
		t.Error("Key() should differ on coordinates")
	}
}

func TestCache_SetGet_OrderIndependent(t *testing.T) {
	c := New(time.Minute, 10)

	a := params(40.7128, -74.006)
	a.Causes = []string{"education", "environment"}
	c.Set(a, someOpps(2), Metadata{TotalResults: 2}, 0)

	b := params(40.7128, -74.006)
	b.Causes = []string{"environment", "education"}

	data, ok := c.Get(b)
	if !ok {
		t.Fatal("Get() miss, want hit for equivalent params with reordered causes")
	}
	if len(data) != 2 {
		t.Errorf("Get() returned %d opportunities, want 2", len(data))
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(time.Minute, 10)

	p := params(40, -74)
	c.Set(p, someOpps(1), Metadata{}, 100*time.Millisecond)

	if _, ok := c.Get(p); !ok {
		t.Fatal("entry should be retrievable immediately after Set")
	}

	time.Sleep(150 * time.Millisecond)

	if _, ok := c.Get(p); ok {
		t.Error("entry should be expired after TTL")
	}

	st := c.Stats()
	if st.Entries != 0 {
		t.Errorf("Entries = %d, want 0 (expired entry deleted on access)", st.Entries)
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(time.Minute, 2)

	first := params(40, -74)
	second := params(41, -75)
	third := params(42, -76)

	c.Set(first, someOpps(1), Metadata{}, 0)
	time.Sleep(5 * time.Millisecond)
	c.Set(second, someOpps(1), Metadata{}, 0)
	time.Sleep(5 * time.Millisecond)

	// освежаем first: LRU теперь second
	if _, ok := c.Get(first); !ok {
		t.Fatal("first entry should be present")
	}

	c.Set(third, someOpps(1), Metadata{}, 0)

	if _, ok := c.Get(first); !ok {
		t.Error("first (recently accessed) should survive eviction")
	}
	if _, ok := c.Get(second); ok {
		t.Error("second (least recently accessed) should be evicted")
	}
	if _, ok := c.Get(third); !ok {
		t.Error("third (just inserted) should be present")
	}
}

func TestCache_GetEntry(t *testing.T) {
	c := New(time.Minute, 10)
	p := params(40, -74)
	c.Set(p, someOpps(3), Metadata{TotalResults: 3, Sources: []string{"A"}}, 0)

	c.Get(p)
	c.Get(p)

	e, ok := c.GetEntry(p)
	if !ok {
		t.Fatal("GetEntry() miss, want hit")
	}
	if e.AccessCount != 3 { // 1 от Set + 2 Get
		t.Errorf("AccessCount = %d, want 3", e.AccessCount)
	}
	if e.Metadata.TotalResults != 3 {
		t.Errorf("Metadata.TotalResults = %d, want 3", e.Metadata.TotalResults)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New(time.Minute, 10)

	ny := params(40.7128, -74.006)
	la := params(34.0522, -118.2437)
	c.Set(ny, someOpps(1), Metadata{}, 0)
	c.Set(la, someOpps(1), Metadata{}, 0)

	loc := domain.Coordinates{Lat: 40.7128, Lng: -74.006}
	removed := c.Invalidate(Filter{Location: &loc})
	if removed != 1 {
		t.Errorf("Invalidate() = %d, want 1", removed)
	}
	if c.Has(ny) {
		t.Error("NY entry should be invalidated")
	}
	if !c.Has(la) {
		t.Error("LA entry should remain")
	}
}

func TestCache_InvalidateByCause(t *testing.T) {
	c := New(time.Minute, 10)

	env := params(40, -74)
	env.Causes = []string{"environment"}
	edu := params(40, -74)
	edu.Causes = []string{"education"}
	c.Set(env, someOpps(1), Metadata{}, 0)
	c.Set(edu, someOpps(1), Metadata{}, 0)

	removed := c.Invalidate(Filter{Causes: []string{"environment"}})
	if removed != 1 {
		t.Errorf("Invalidate() = %d, want 1", removed)
	}
	if !c.Has(edu) {
		t.Error("education entry should remain")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New(time.Minute, 10)
	p := params(40, -74)

	c.Get(p) // miss
	c.Set(p, someOpps(2), Metadata{}, 0)
	c.Get(p) // hit

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", st.Hits, st.Misses)
	}
	if st.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", st.HitRate)
	}
	if st.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive with one entry")
	}
	if st.Oldest.IsZero() || st.Newest.IsZero() {
		t.Error("Oldest/Newest should be set")
	}
}

func TestCache_Configure_ShrinksToSize(t *testing.T) {
	c := New(time.Minute, 5)
	for i := 0; i < 5; i++ {
		c.Set(params(float64(40+i), -74), someOpps(1), Metadata{}, 0)
	}

	c.Configure(time.Minute, 2)

	if st := c.Stats(); st.Entries != 2 {
		t.Errorf("Entries = %d after shrink, want 2", st.Entries)
	}
}

func TestCache_Warm(t *testing.T) {
	c := New(time.Minute, 10)

	list := []domain.SearchParameters{params(40, -74), params(41, -75), params(42, -76)}
	warmed := c.Warm(context.Background(), list, func(ctx context.Context, p domain.SearchParameters) ([]domain.Opportunity, Metadata, error) {
		if p.Location.Lat == 41 {
			return nil, Metadata{}, errors.New("provider down")
		}
		return someOpps(1), Metadata{TotalResults: 1}, nil
	})

	if warmed != 2 {
		t.Errorf("Warm() = %d, want 2 (one location fails, failure swallowed)", warmed)
	}
	if !c.Has(list[0]) || !c.Has(list[2]) {
		t.Error("successful locations should be cached")
	}
	if c.Has(list[1]) {
		t.Error("failed location should not be cached")
	}
}
