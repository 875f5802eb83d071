package arena

import (
	"errors"
	"sync"
	"testing"
)

func TestAllocFree(t *testing.T) {
	a := New(0)

	b1, err := a.Alloc(KindMesh, 100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b2, err := a.Alloc(KindChart, 50)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	s := a.Stats()
	if s.Blocks != 2 || s.Bytes != 150 {
		t.Errorf("stats = %+v, want 2 blocks / 150 bytes", s)
	}
	if s.ByKind[KindMesh] != 100 || s.ByKind[KindChart] != 50 {
		t.Errorf("by kind = %v", s.ByKind)
	}

	if err := a.LeakCheck(); !errors.Is(err, ErrLeak) {
		t.Errorf("LeakCheck() = %v, want ErrLeak", err)
	}

	if err := a.FreeAll([]Block{b1, b2}); err != nil {
		t.Fatalf("FreeAll: %v", err)
	}
	if err := a.LeakCheck(); err != nil {
		t.Errorf("LeakCheck() after free = %v", err)
	}
	if a.Stats().Peak != 150 {
		t.Errorf("peak = %d, want 150", a.Stats().Peak)
	}
}

func TestDoubleFree(t *testing.T) {
	a := New(0)
	b, _ := a.Alloc(KindGrid, 8)
	if err := a.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := a.Free(b); !errors.Is(err, ErrDoubleFree) {
		t.Errorf("second Free() = %v, want ErrDoubleFree", err)
	}
}

func TestLimit(t *testing.T) {
	a := New(100)
	if _, err := a.Alloc(KindMesh, 60); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := a.Alloc(KindMesh, 60); !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("Alloc over limit = %v, want ErrAllocationFailure", err)
	}
	if !a.Failed() {
		t.Error("arena should be marked failed")
	}
	// A failed arena stays failed even for small requests.
	if _, err := a.Alloc(KindMesh, 1); !errors.Is(err, ErrAllocationFailure) {
		t.Errorf("Alloc after failure = %v, want ErrAllocationFailure", err)
	}
}

func TestConcurrentAlloc(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	blocks := make([][]Block, 8)
	for i := range blocks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b, err := a.Alloc(KindSolver, 16)
				if err != nil {
					t.Error(err)
					return
				}
				blocks[i] = append(blocks[i], b)
			}
		}(i)
	}
	wg.Wait()

	if got := a.Stats().Blocks; got != 800 {
		t.Errorf("blocks = %d, want 800", got)
	}
	for _, bs := range blocks {
		if err := a.FreeAll(bs); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.LeakCheck(); err != nil {
		t.Errorf("LeakCheck() = %v", err)
	}
}
