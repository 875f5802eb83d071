// Package progress reports pipeline milestones and polls for cancellation.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCanceled is returned when the context is done at a milestone.
var ErrCanceled = errors.New("atlas generation canceled")

// Category identifies the pipeline stage being reported.
type Category int

const (
	AddMesh Category = iota
	ComputeCharts
	ParameterizeCharts
	PackCharts
	BuildOutputMeshes
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case AddMesh:
		return "AddMesh"
	case ComputeCharts:
		return "ComputeCharts"
	case ParameterizeCharts:
		return "ParameterizeCharts"
	case PackCharts:
		return "PackCharts"
	case BuildOutputMeshes:
		return "BuildOutputMeshes"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Func receives milestone notifications. It is called synchronously from the
// pipeline and must return quickly.
type Func func(category Category, current, total int)

// Monitor serializes milestone reports from concurrent workers. Counters are
// kept monotonic per category. A nil Monitor is valid and does nothing.
type Monitor struct {
	ctx     context.Context
	fn      Func
	mu      sync.Mutex
	current map[Category]int
	total   map[Category]int
}

// NewMonitor creates a monitor bound to ctx. fn may be nil.
func NewMonitor(ctx context.Context, fn Func) *Monitor {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Monitor{
		ctx:     ctx,
		fn:      fn,
		current: make(map[Category]int),
		total:   make(map[Category]int),
	}
}

// Begin sets the expected step count for a category and resets its counter.
func (m *Monitor) Begin(c Category, total int) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.current[c] = 0
	m.total[c] = total
	m.notify(c, 0, total)
	m.mu.Unlock()
	return m.Check()
}

// Step advances the category counter by n and polls for cancellation.
func (m *Monitor) Step(c Category, n int) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	m.current[c] += n
	cur, total := m.current[c], m.total[c]
	if cur > total {
		total = cur
		m.total[c] = total
	}
	m.notify(c, cur, total)
	m.mu.Unlock()
	return m.Check()
}

// Advance moves the counter to at least done without ever moving it back.
func (m *Monitor) Advance(c Category, done int) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if done <= m.current[c] {
		m.mu.Unlock()
		return m.Check()
	}
	m.current[c] = done
	total := m.total[c]
	if done > total {
		total = done
		m.total[c] = total
	}
	m.notify(c, done, total)
	m.mu.Unlock()
	return m.Check()
}

// Check returns ErrCanceled if the context is done.
func (m *Monitor) Check() error {
	if m == nil {
		return nil
	}
	if err := m.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

// notify must be called with m.mu held so the host sees an ordered sequence.
func (m *Monitor) notify(c Category, cur, total int) {
	if m.fn != nil {
		m.fn(c, cur, total)
	}
}
