// Package mapping resolves input identifiers (ABS_X, BTN_A, ...) to handlers or
// to other identifiers.  A lookup for an identifier with no entry never fails:
// the table's default, chosen when the table is built, is returned instead.
package mapping

import (
	"sort"

	"golang.org/x/exp/maps"
)

// Table maps identifiers to values of type V.  Tables are built at start-up and
// only read afterwards, so they need no locking.
type Table[V any] struct {
	entries  map[string]V
	fallback func(id string) V
}

// NewTable returns an empty table whose Resolve falls back to fallback(id).
func NewTable[V any](fallback func(id string) V) *Table[V] {
	return &Table[V]{
		entries:  map[string]V{},
		fallback: fallback,
	}
}

// Set binds id to v, replacing any existing binding.
func (t *Table[V]) Set(id string, v V) {
	t.entries[id] = v
}

// Lookup returns the explicit binding for id, if any.
func (t *Table[V]) Lookup(id string) (V, bool) {
	v, ok := t.entries[id]
	return v, ok
}

// Resolve returns the binding for id, or the table default if id is unbound.
func (t *Table[V]) Resolve(id string) V {
	if v, ok := t.entries[id]; ok {
		return v
	}
	return t.fallback(id)
}

// Keys returns the bound identifiers in sorted order.
func (t *Table[V]) Keys() []string {
	keys := maps.Keys(t.entries)
	sort.Strings(keys)
	return keys
}

func (t *Table[V]) Len() int {
	return len(t.entries)
}

// Remap normalizes vendor-specific button names to canonical ones.  Unmapped
// names pass through unchanged.
type Remap = Table[string]

func NewRemap(pairs map[string]string) *Remap {
	r := NewTable(func(id string) string { return id })
	for from, to := range pairs {
		r.Set(from, to)
	}
	return r
}
