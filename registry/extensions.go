package registry

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/CAD97/tracing/anymap"
	"github.com/CAD97/tracing/slotpool"
)

// Extensions is a read-only view of one span's extensions. It exists only
// for the duration of one access: it is created holding read locks on the
// span's key map and the registry's pool map, and both are held until
// Release. This serializes against writers of the same span but never blocks
// readers or writers of other spans or other types.
type Extensions struct {
	span     *Span
	released bool
}

// Release drops the view's locks. Pointers previously obtained through the
// view must not be used afterward. Release is idempotent.
func (e *Extensions) Release() {
	if e.released {
		return
	}
	e.released = true
	e.span.registry.mu.RUnlock()
	e.span.mu.RUnlock()
}

// mustHeld stops an access through a view whose locks are already gone;
// continuing would read the key map unguarded.
func (e *Extensions) mustHeld() {
	if e.released {
		panic("extensions view used after Release")
	}
}

// Len reports the count of distinct extension types attached to the span.
// The types and values themselves are not exposed here; not every attached
// type is printable.
func (e *Extensions) Len() int {
	return len(e.span.keys)
}

// MarshalZerologObject emits the view's diagnostic fields.
func (e *Extensions) MarshalZerologObject(ev *zerolog.Event) {
	ev.Uint64("span_id", e.span.id).Int("extension_types", e.Len())
}

func (e *Extensions) String() string {
	return fmt.Sprintf("Extensions{span: %d, types: %d}", e.span.id, e.Len())
}

// Get returns the span's attached value of type T, if any. The returned
// pointer is valid only while the view is held. A type with no key on this
// span is a clean miss; a key whose pool is missing from the registry is a
// broken invariant and panics.
func Get[T any](e *Extensions) (*T, bool) {
	e.mustHeld()
	t := anymap.TypeOf[T]()
	key, ok := e.span.keys[t]
	if !ok {
		return nil, false
	}
	v, ok := e.span.registry.pools.Get(t)
	if !ok {
		panic(fmt.Sprintf("extensions corrupted: no pool for attached type %s", t))
	}
	return v.(*slotpool.Pool[T]).Get(key)
}
