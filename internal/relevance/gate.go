package relevance

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Wt-Zhou/arxiv-agent/internal/metrics"
)

// Gate bounds the number of backend calls in flight. One Gate is shared by
// every stage of a run.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewGate(capacity int) (*Gate, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: max concurrent must be at least 1, got %d", ErrInvalidConfig, capacity)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}, nil
}

func (g *Gate) Capacity() int { return g.capacity }

// InFlight reports how many calls currently hold a slot.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Peak reports the highest simultaneous occupancy observed.
func (g *Gate) Peak() int { return int(g.peak.Load()) }

// Do runs fn while holding one slot. The slot is released on every exit path,
// including a panic in fn. An error is returned without running fn if ctx ends
// before a slot frees up.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire gate: %w", err)
	}
	n := g.inFlight.Add(1)
	metrics.GateInFlight.Inc()
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer func() {
		g.inFlight.Add(-1)
		metrics.GateInFlight.Dec()
		g.sem.Release(1)
	}()
	return fn(ctx)
}
