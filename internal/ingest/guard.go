package ingest

import "sync/atomic"

// Guard is a busy token for one job. A run that cannot acquire it is
// skipped, never queued.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire marks the guard busy and reports whether it was free
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release marks the guard free
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether a run currently holds the guard
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
