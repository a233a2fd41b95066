package bindex

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle guards a column's index pointer through its lifecycle
// (Unloaded -> Loading -> Loaded -> Unloading -> Unloaded) with a
// reader-count discipline: Unload refuses while any Borrow guard is live.
// Borrow handles replace manual reader counting; they are tied to the
// lifetime of a Guard object, and Unload is only callable when no guards
// are outstanding.
type Handle struct {
	mu    sync.RWMutex
	idx   *Index
	state State
	cnt   int32
}

// NewHandle wraps an already-built or already-loaded Index.
func NewHandle(idx *Index) *Handle {
	st := Unloaded
	if idx != nil {
		st = Loaded
	}
	return &Handle{idx: idx, state: st}
}

// Guard borrows the index for the duration of one read; Release must be
// called when done. The guard pins the index object, not the lock: the
// lock is only held long enough to take a consistent snapshot of the
// pointer and bump idxcnt, so a guard may stay open across blocking I/O
// (bitmap activation) without starving Unload's write lock.
type Guard struct {
	h   *Handle
	idx *Index
}

// Borrow increments idxcnt and returns a guard for the loaded index, or
// nil if no index is currently loaded.
func (h *Handle) Borrow() *Guard {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.idx == nil || h.state != Loaded {
		return nil
	}
	atomic.AddInt32(&h.cnt, 1)
	return &Guard{h: h, idx: h.idx}
}

// Index returns the borrowed index, or nil if the guard is empty.
func (g *Guard) Index() *Index {
	if g == nil {
		return nil
	}
	return g.idx
}

// Release ends the borrow. Releasing twice, or releasing a nil guard, is
// a no-op.
func (g *Guard) Release() {
	if g == nil || g.h == nil {
		return
	}
	atomic.AddInt32(&g.h.cnt, -1)
	g.h = nil
	g.idx = nil
}

// Attach installs a newly built or loaded index, transitioning
// Unloaded -> Loading -> Loaded.
func (h *Handle) Attach(idx *Index) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Loading
	h.idx = idx
	h.state = Loaded
}

// Mutate runs fn on the loaded index under the write lock, the hook for
// in-place modification (append); concurrent readers see either the pre-
// or post-mutation index, never a partial state. It is a no-op when no
// index is loaded.
func (h *Handle) Mutate(fn func(*Index) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.idx == nil || h.state != Loaded {
		return nil
	}
	return fn(h.idx)
}

// Unload transitions Loaded -> Unloading -> Unloaded. It refuses while any
// Guard is outstanding.
func (h *Handle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := atomic.LoadInt32(&h.cnt); n > 0 {
		return fmt.Errorf("bindex: unload refused: %d outstanding readers", n)
	}
	h.state = Unloading
	h.idx = nil
	h.state = Unloaded
	return nil
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}
