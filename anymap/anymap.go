// Package anymap provides a heterogeneous map that associates at most one
// value with each concrete Go type. reflect.Type values are canonical within a
// process, so they are used directly as map keys with no additional hashing or
// mixing; equality is identity equality on the type descriptor.
package anymap

import "reflect"

// Map stores one opaque value per runtime type. It is not internally
// synchronized; callers sharing a Map across goroutines must guard it with
// their own lock.
type Map struct {
	entries   map[reflect.Type]any
	highWater int
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[reflect.Type]any)}
}

// TypeOf returns the runtime type identity of T. It works for interface and
// pointer types as well as concrete ones, and never needs a value of T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Insert stores value under the given type key and returns the value it
// displaced, if any.
func (m *Map) Insert(key reflect.Type, value any) (prev any, ok bool) {
	prev, ok = m.entries[key]
	m.entries[key] = value
	if len(m.entries) > m.highWater {
		m.highWater = len(m.entries)
	}
	return prev, ok
}

// Get returns the value stored under the given type key.
func (m *Map) Get(key reflect.Type) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Remove deletes and returns the value stored under the given type key.
func (m *Map) Remove(key reflect.Type) (any, bool) {
	v, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return v, ok
}

// Keys returns the type keys currently stored, in no particular order.
func (m *Map) Keys() []reflect.Type {
	acc := make([]reflect.Type, 0, len(m.entries))
	for k := range m.entries {
		acc = append(acc, k)
	}
	return acc
}

// Len returns the number of types currently stored.
func (m *Map) Len() int {
	return len(m.entries)
}

// Clear removes every entry. The map's allocated buckets are retained, so a
// cleared Map can be refilled to its previous size without growing.
func (m *Map) Clear() {
	clear(m.entries)
}

// Capacity reports the high-water entry count the Map has held. Clear does
// not lower it, mirroring the retained bucket allocation.
func (m *Map) Capacity() int {
	return m.highWater
}

// Insert stores value keyed by its compile-time type T and returns the typed
// value it displaced, if any.
func Insert[T any](m *Map, value T) (prev T, ok bool) {
	v, ok := m.Insert(TypeOf[T](), value)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Get returns the value stored for type T, if any.
func Get[T any](m *Map) (T, bool) {
	v, ok := m.Get(TypeOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Remove deletes and returns the value stored for type T, if any.
func Remove[T any](m *Map) (T, bool) {
	v, ok := m.Remove(TypeOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
