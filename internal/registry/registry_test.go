package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voluntr/oppsearch/internal/provider/mock"
)

func TestRegistry_RegisterOrder(t *testing.T) {
	r := New(nil)
	r.Register(mock.New("A"))
	r.Register(mock.New("B"))
	r.Register(mock.New("C"))

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d providers, want 3", len(all))
	}
	for i, want := range []string{"A", "B", "C"} {
		if all[i].Name() != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].Name(), want)
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New(nil)
	r.Register(mock.New("A"))
	r.Register(mock.New("B"))

	r.Unregister("A")

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
	if _, ok := r.Get("A"); ok {
		t.Error("Get(A) should fail after unregister")
	}
}

func TestRegistry_HealthyOptimisticDefault(t *testing.T) {
	r := New(nil)
	r.Register(mock.New("never-checked"))

	healthy := r.Healthy()
	if len(healthy) != 1 {
		t.Errorf("Healthy() returned %d providers, want 1 (unchecked counts as healthy)", len(healthy))
	}
}

func TestRegistry_CheckHealth(t *testing.T) {
	r := New(nil)
	bad := mock.New("bad").WithHealthError(errors.New("503"))
	good := mock.New("good")
	r.Register(bad)
	r.Register(good)

	if err := r.CheckHealth(context.Background(), "bad", time.Second); err == nil {
		t.Error("CheckHealth(bad) = nil, want error")
	}
	if err := r.CheckHealth(context.Background(), "good", time.Second); err != nil {
		t.Errorf("CheckHealth(good) = %v, want nil", err)
	}

	healthy := r.Healthy()
	if len(healthy) != 1 || healthy[0].Name() != "good" {
		t.Errorf("Healthy() = %d providers, want only good", len(healthy))
	}

	// провайдер восстановился - следующий пробник возвращает его в строй
	bad.HealthErr = nil
	if err := r.CheckHealth(context.Background(), "bad", time.Second); err != nil {
		t.Errorf("CheckHealth(recovered) = %v, want nil", err)
	}
	if len(r.Healthy()) != 2 {
		t.Error("recovered provider should be healthy again")
	}
}

func TestRegistry_CheckHealth_NotRegistered(t *testing.T) {
	r := New(nil)
	if err := r.CheckHealth(context.Background(), "ghost", time.Second); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("CheckHealth(ghost) = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_CheckHealth_Timeout(t *testing.T) {
	r := New(nil)
	slow := mock.New("slow").WithDelay(time.Second)
	r.Register(slow)

	start := time.Now()
	err := r.CheckHealth(context.Background(), "slow", 20*time.Millisecond)
	if err == nil {
		t.Error("CheckHealth(slow) = nil, want timeout error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("CheckHealth took %v, should respect its timeout", elapsed)
	}
}

func TestRegistry_CheckAll(t *testing.T) {
	r := New(nil)
	r.Register(mock.New("a"))
	r.Register(mock.New("b").WithHealthError(errors.New("down")))

	statuses := r.CheckAll(context.Background(), time.Second)
	if len(statuses) != 2 {
		t.Fatalf("CheckAll() returned %d statuses, want 2", len(statuses))
	}

	byName := map[string]HealthStatus{}
	for _, st := range statuses {
		byName[st.Name] = st
	}
	if !byName["a"].Healthy {
		t.Error("provider a should be healthy")
	}
	if byName["b"].Healthy {
		t.Error("provider b should be unhealthy")
	}
	if byName["b"].Error == "" {
		t.Error("provider b status should carry the probe error")
	}
}
