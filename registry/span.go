package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/CAD97/tracing/slotpool"
)

type keyMap map[reflect.Type]slotpool.Key

func newKeyMap() keyMap {
	return make(keyMap)
}

// Span is one tracked unit of work. Its extension state is a private map from
// attached type to slot key; the values themselves live in the Registry's
// shared per-type pools. A type has a key in the map iff a live value of that
// type is attached.
type Span struct {
	id       uint64
	registry *Registry

	// mu guards keys. Writers (insert, remove, replace, finalize) hold the
	// write side for the whole call, so no reader of this span observes a
	// torn state.
	mu   sync.RWMutex
	keys keyMap
}

// ID returns the span's registry-assigned identifier.
func (s *Span) ID() uint64 {
	return s.id
}

// Extensions returns a read view of the span's extensions. The view holds
// read locks on both the span's key map and the registry's pool map until
// Release is called; pointers obtained through the view are valid only while
// it is held. Concurrent readers, of this span or any other, do not block
// each other.
func (s *Span) Extensions() *Extensions {
	s.mu.RLock()
	s.registry.mu.RLock()
	return &Extensions{span: s}
}

// ExtensionsMut returns a write view of the span's extensions. The view
// holds the span's write lock until Release is called, serializing all
// writers and readers of this span while leaving every other span untouched.
func (s *Span) ExtensionsMut() *ExtensionsMut {
	s.mu.Lock()
	return &ExtensionsMut{span: s}
}

// Finalize drops every extension attached to the span, clearing each slot in
// the shared pools and emptying the key map. Called by the layer that tears
// the span down; afterward the span behaves as if freshly created.
func (s *Span) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.registry
	r.mu.RLock()
	for t, key := range s.keys {
		v, ok := r.pools.Get(t)
		if !ok {
			r.mu.RUnlock()
			panic(fmt.Sprintf("extensions corrupted: no pool for attached type %s", t))
		}
		v.(slotpool.Slots).Clear(key)
	}
	r.mu.RUnlock()

	n := len(s.keys)
	clear(s.keys)
	r.logger.Debug().Uint64("span_id", s.id).Int("extension_types", n).Msg("span finalized")
}
