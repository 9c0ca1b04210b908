package registry

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/CAD97/tracing/anymap"
	"github.com/CAD97/tracing/slotpool"
	"github.com/CAD97/tracing/telemetry"
)

// ExtensionsMut is a writable view of one span's extensions. It holds the
// span's write lock from creation until Release, so a sequence of operations
// through one view is atomic with respect to every other reader and writer of
// the same span. The registry's pool-map lock is taken per operation, and
// write-locked only to create a pool for a brand-new type.
type ExtensionsMut struct {
	span     *Span
	released bool
}

// Release drops the span's write lock. Pointers previously obtained through
// the view must not be used afterward. Release is idempotent.
func (e *ExtensionsMut) Release() {
	if e.released {
		return
	}
	e.released = true
	e.span.mu.Unlock()
}

// mustHeld stops an access through a view whose lock is already gone;
// continuing would touch the key map unguarded.
func (e *ExtensionsMut) mustHeld() {
	if e.released {
		panic("extensions view used after Release")
	}
}

// Len reports the count of distinct extension types attached to the span.
func (e *ExtensionsMut) Len() int {
	return len(e.span.keys)
}

// MarshalZerologObject emits the view's diagnostic fields.
func (e *ExtensionsMut) MarshalZerologObject(ev *zerolog.Event) {
	ev.Uint64("span_id", e.span.id).Int("extension_types", e.Len())
}

func (e *ExtensionsMut) String() string {
	return fmt.Sprintf("ExtensionsMut{span: %d, types: %d}", e.span.id, e.Len())
}

// poolFor locates the shared pool for T, creating it if no span has attached
// T before. Acquisition is optimistic to keep contention off the rarely
// mutated registry lock: try under the read lock first; on a miss, upgrade to
// the write lock, insert an empty pool only if still absent, then downgrade
// and re-fetch. The re-fetch is what makes racing creators converge: the
// canonical pool is always the one read back from the map, never the one this
// call happened to construct, so neither racer's values land in a discarded
// pool.
func poolFor[T any](r *Registry) *slotpool.Pool[T] {
	t := anymap.TypeOf[T]()

	r.mu.RLock()
	v, ok := r.pools.Get(t)
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if _, exists := r.pools.Get(t); !exists {
			r.pools.Insert(t, slotpool.New[T](r.poolCapacity))
			r.poolCreated(t.String())
		}
		r.mu.Unlock()

		r.mu.RLock()
		v, ok = r.pools.Get(t)
		r.mu.RUnlock()
		if !ok {
			panic(fmt.Sprintf("extensions corrupted: pool for %s vanished after creation", t))
		}
	}
	return v.(*slotpool.Pool[T])
}

// Insert attaches value to the span under type T. Inserting a type that is
// already attached is a usage error in the calling layer and fails with
// ErrExtensionAlreadyPresent, naming T; the existing value is untouched. A
// slot-pool exhaustion error is fatal and propagates unmasked.
func Insert[T any](e *ExtensionsMut, value T) error {
	e.mustHeld()
	t := anymap.TypeOf[T]()
	if _, exists := e.span.keys[t]; exists {
		return eris.Wrapf(ErrExtensionAlreadyPresent, "extension type %s", t)
	}

	pool := poolFor[T](e.span.registry)
	key, err := pool.CreateWith(func(slot *T) { *slot = value })
	if err != nil {
		return eris.Wrapf(err, "allocating slot for extension type %s", t)
	}

	e.span.keys[t] = key
	telemetry.EmitExtensionStat("insert", t.String())
	return nil
}

// GetMut returns a mutable pointer to the span's attached value of type T,
// if any. The pointer is valid only while the view is held; the span's write
// lock, held by the view, is what serializes access to the slot's contents.
func GetMut[T any](e *ExtensionsMut) (*T, bool) {
	e.mustHeld()
	t := anymap.TypeOf[T]()
	key, ok := e.span.keys[t]
	if !ok {
		return nil, false
	}

	r := e.span.registry
	r.mu.RLock()
	v, ok := r.pools.Get(t)
	r.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("extensions corrupted: no pool for attached type %s", t))
	}
	return v.(*slotpool.Pool[T]).Get(key)
}

// Replace attaches value under type T, detaching any previous value first.
// Reports whether a previous value existed. The whole exchange happens under
// the span's write lock held by the view, so no other accessor of this span
// can observe the intermediate detached state.
func Replace[T any](e *ExtensionsMut, value T) (replaced bool, err error) {
	replaced = Remove[T](e)
	if err := Insert(e, value); err != nil {
		return replaced, err
	}
	telemetry.EmitExtensionStat("replace", anymap.TypeOf[T]().String())
	return replaced, nil
}

// Remove detaches the span's value of type T, deleting its key and clearing
// the shared pool's slot. Reports whether a value was attached; removing an
// absent type is not an error.
func Remove[T any](e *ExtensionsMut) bool {
	e.mustHeld()
	t := anymap.TypeOf[T]()
	key, ok := e.span.keys[t]
	if !ok {
		return false
	}
	delete(e.span.keys, t)

	r := e.span.registry
	r.mu.RLock()
	v, ok := r.pools.Get(t)
	r.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("extensions corrupted: no pool for attached type %s", t))
	}
	v.(*slotpool.Pool[T]).Clear(key)
	telemetry.EmitExtensionStat("remove", t.String())
	return true
}
