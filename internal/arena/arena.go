// Package arena tracks the buffers owned by an atlas session so that teardown
// can be verified and an optional memory budget can be enforced.
package arena

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Arena errors.
var (
	ErrAllocationFailure = errors.New("allocation failure")
	ErrDoubleFree        = errors.New("block released twice")
	ErrLeak              = errors.New("outstanding allocations")
)

// Kind labels what a block holds.
type Kind string

// Block kinds used by the pipeline.
const (
	KindMesh    Kind = "mesh"
	KindChart   Kind = "chart"
	KindSolver  Kind = "solver"
	KindGrid    Kind = "grid"
	KindAtlas   Kind = "atlas"
	KindOutput  Kind = "output"
	KindPreview Kind = "preview"
)

// Block is a handle to an accounted allocation.
type Block struct {
	id    uint64
	kind  Kind
	bytes int64
}

// Bytes returns the accounted size.
func (b Block) Bytes() int64 { return b.bytes }

// Kind returns the block kind.
func (b Block) Kind() Kind { return b.kind }

// Stats is a snapshot of arena usage.
type Stats struct {
	Blocks int
	Bytes  int64
	Peak   int64
	ByKind map[Kind]int64
}

// Arena accounts allocations. It is safe for concurrent use.
type Arena struct {
	mu     sync.Mutex
	limit  int64
	used   int64
	peak   int64
	nextID uint64
	live   map[uint64]Block
	failed bool
}

// New creates an arena. A limit <= 0 disables the budget.
func New(limit int64) *Arena {
	return &Arena{
		limit: limit,
		live:  make(map[uint64]Block),
	}
}

// Alloc accounts a new block of the given size. Once an allocation has
// failed the arena refuses every further request.
func (a *Arena) Alloc(kind Kind, bytes int64) (Block, error) {
	if bytes < 0 {
		bytes = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed {
		return Block{}, fmt.Errorf("%w: arena exhausted", ErrAllocationFailure)
	}
	if a.limit > 0 && a.used+bytes > a.limit {
		a.failed = true
		return Block{}, fmt.Errorf("%w: %s block of %d bytes exceeds limit (%d of %d in use)",
			ErrAllocationFailure, kind, bytes, a.used, a.limit)
	}

	a.nextID++
	b := Block{id: a.nextID, kind: kind, bytes: bytes}
	a.live[b.id] = b
	a.used += bytes
	if a.used > a.peak {
		a.peak = a.used
	}
	return b, nil
}

// Free releases a block.
func (a *Arena) Free(b Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.live[b.id]; !ok {
		return fmt.Errorf("%w: %s block %d", ErrDoubleFree, b.kind, b.id)
	}
	delete(a.live, b.id)
	a.used -= b.bytes
	return nil
}

// FreeAll releases every block in bs, reporting the first error.
func (a *Arena) FreeAll(bs []Block) error {
	var first error
	for _, b := range bs {
		if err := a.Free(b); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Failed reports whether an allocation has exceeded the budget.
func (a *Arena) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Stats returns a snapshot of current usage.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		Blocks: len(a.live),
		Bytes:  a.used,
		Peak:   a.peak,
		ByKind: make(map[Kind]int64),
	}
	for _, b := range a.live {
		s.ByKind[b.kind] += b.bytes
	}
	return s
}

// LeakCheck returns ErrLeak describing outstanding blocks, or nil.
func (a *Arena) LeakCheck() error {
	s := a.Stats()
	if s.Blocks == 0 {
		return nil
	}

	kinds := make([]string, 0, len(s.ByKind))
	for k, n := range s.ByKind {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(kinds)
	return fmt.Errorf("%w: %d blocks, %d bytes %v", ErrLeak, s.Blocks, s.Bytes, kinds)
}
