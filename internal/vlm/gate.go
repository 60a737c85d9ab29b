package vlm

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/mandalnilabja/ocrway/internal/metrics"
)

// DefaultMaxConcurrent is the number of simultaneous backend calls allowed.
const DefaultMaxConcurrent = 2

// Gate bounds the number of in-flight remote calls across the process.
// Build one in main and share it.
type Gate struct {
	sem  *semaphore.Weighted
	size int64
}

// NewGate creates a gate with size slots. Non-positive sizes use
// DefaultMaxConcurrent.
func NewGate(size int) *Gate {
	if size <= 0 {
		size = DefaultMaxConcurrent
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Acquire waits for a slot. If ctx ends first no slot is held and ctx's
// error is returned.
func (g *Gate) Acquire(ctx context.Context) error {
	metrics.GateWaiting.Inc()
	defer metrics.GateWaiting.Dec()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.GateInFlight.Inc()
	return nil
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	metrics.GateInFlight.Dec()
	g.sem.Release(1)
}

// Size returns the configured number of slots.
func (g *Gate) Size() int {
	return int(g.size)
}
