// Package slotpool implements a concurrent, growable pool of reusable storage
// cells addressed by stable keys. One pool is shared per attached type across
// every span in a registry, so repeated attach/detach cycles reuse cells
// instead of reallocating.
package slotpool

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrExhausted is returned by CreateWith when the pool holds its maximum
// number of cells and none are free. Callers must treat it as fatal and
// propagate it; it is never masked or retried here.
var ErrExhausted = eris.New("slot pool exhausted")

// DefaultMaxSlots bounds a pool that was built without an explicit limit.
const DefaultMaxSlots = 1 << 20

// Key addresses one cell in a Pool. Keys are stable for the lifetime of the
// cell's occupancy and are recycled after Clear.
type Key int

// Slots is the type-erased view of a Pool. It carries the operations that do
// not mention the element type, so owners of many pools (keyed by runtime
// type) can finalize cells and report diagnostics without knowing T.
type Slots interface {
	// Clear empties the cell at key, returning whether it held a value.
	Clear(key Key) bool
	// Len returns the number of occupied cells.
	Len() int
	// Capacity returns the number of allocated cells. It never shrinks.
	Capacity() int
}

type slot[T any] struct {
	value    T
	occupied bool
}

// Pool is a growable set of cells each holding an optional T. All methods are
// safe for concurrent use.
//
// Cells are allocated individually so a pointer handed out by Get stays
// valid while the pool grows underneath it; only the index slice is
// reallocated. Cleared cells return their index to a free list, so churny
// attach/detach workloads stay within the capacity of their peak live count
// rather than growing without bound.
type Pool[T any] struct {
	mu       sync.RWMutex
	slots    []*slot[T]
	free     []Key
	maxSlots int
	live     int
}

var _ Slots = (*Pool[int])(nil)

// New returns an empty pool that will allocate at most maxSlots cells. A
// non-positive maxSlots selects DefaultMaxSlots.
func New[T any](maxSlots int) *Pool[T] {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	return &Pool[T]{maxSlots: maxSlots}
}

// CreateWith allocates a cell, runs init on its contents, and returns the
// cell's key. The cell is visible to Get only after init returns. Returns
// ErrExhausted when the pool is at capacity with no free cells.
func (p *Pool[T]) CreateWith(init func(*T)) (Key, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var key Key
	if n := len(p.free); n > 0 {
		key = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if len(p.slots) >= p.maxSlots {
			return 0, eris.Wrapf(ErrExhausted, "pool at capacity %d", p.maxSlots)
		}
		p.slots = append(p.slots, &slot[T]{})
		key = Key(len(p.slots) - 1)
	}

	s := p.slots[key]
	s.occupied = true
	if init != nil {
		init(&s.value)
	}
	p.live++
	return key, nil
}

// Get returns a pointer to the cell's current contents, or false if the key
// is out of range or the cell is empty.
//
// The pointer stays valid until the cell is cleared. The pool only guards the
// cell's occupancy; content-level synchronization belongs to the caller,
// which in this module is the per-span lock that makes each cell reachable
// through exactly one span's key map.
func (p *Pool[T]) Get(key Key) (*T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if key < 0 || int(key) >= len(p.slots) {
		return nil, false
	}
	s := p.slots[key]
	if !s.occupied {
		return nil, false
	}
	return &s.value, true
}

// Clear empties the cell at key and returns its index to the free list for
// reuse. Reports whether the cell held a value; clearing an empty or unknown
// key is a no-op.
func (p *Pool[T]) Clear(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key < 0 || int(key) >= len(p.slots) {
		return false
	}
	s := p.slots[key]
	if !s.occupied {
		return false
	}
	var zero T
	s.value = zero
	s.occupied = false
	p.free = append(p.free, key)
	p.live--
	return true
}

// Len returns the number of occupied cells.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.live
}

// Capacity returns the number of cells the pool has allocated, occupied or
// not. It never shrinks.
func (p *Pool[T]) Capacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.slots)
}
