package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMonitorMonotonic(t *testing.T) {
	var mu sync.Mutex
	last := map[Category]int{}
	m := NewMonitor(context.Background(), func(c Category, cur, total int) {
		mu.Lock()
		defer mu.Unlock()
		if cur < last[c] {
			t.Errorf("%s went backwards: %d -> %d", c, last[c], cur)
		}
		if cur > total {
			t.Errorf("%s current %d > total %d", c, cur, total)
		}
		last[c] = cur
	})

	if err := m.Begin(PackCharts, 10); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Step(PackCharts, 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Advancing to a lower value is a no-op.
	if err := m.Advance(PackCharts, 3); err != nil {
		t.Fatal(err)
	}
	if last[PackCharts] != 10 {
		t.Errorf("final counter = %d, want 10", last[PackCharts])
	}
}

func TestMonitorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(ctx, nil)
	if err := m.Step(ComputeCharts, 1); err != nil {
		t.Fatalf("unexpected error before cancel: %v", err)
	}
	cancel()
	err := m.Step(ComputeCharts, 1)
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Step() after cancel = %v, want ErrCanceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Step() should wrap context.Canceled, got %v", err)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	if err := m.Step(AddMesh, 1); err != nil {
		t.Errorf("nil monitor Step() = %v", err)
	}
	if err := m.Check(); err != nil {
		t.Errorf("nil monitor Check() = %v", err)
	}
}

func TestCategoryString(t *testing.T) {
	if PackCharts.String() != "PackCharts" {
		t.Errorf("String() = %s", PackCharts.String())
	}
	if Category(42).String() != "Unknown(42)" {
		t.Errorf("String() = %s", Category(42).String())
	}
}
