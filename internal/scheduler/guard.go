package scheduler

import "sync/atomic"

// Guard is a single-flight latch. It is process-local: separate processes
// sharing a database each hold their own latch.
type Guard struct {
	running atomic.Bool
}

// TryAcquire takes the latch. It returns false when a run is in progress.
func (g *Guard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release frees the latch.
func (g *Guard) Release() {
	g.running.Store(false)
}

// Running reports whether the latch is held.
func (g *Guard) Running() bool {
	return g.running.Load()
}
