// Package bimap provides a two-sided unique key/value table.
package bimap

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrKeyExists is returned by Add when the key is already mapped.
	ErrKeyExists = errors.New("bimap: key already exists")

	// ErrValueExists is returned by Add when the value is already mapped.
	ErrValueExists = errors.New("bimap: value already exists")
)

// BiMap holds a pair of mutually inverse maps K→V and V→K. Both keys and
// values are unique.
//
// Thread-safety: BiMap does no locking. It is meant to be populated once at
// startup and read afterwards; concurrent mutation must be synchronized by
// the caller.
type BiMap[K comparable, V comparable] struct {
	forward map[K]V
	reverse map[V]K
}

// New returns an empty BiMap.
func New[K comparable, V comparable]() *BiMap[K, V] {
	return &BiMap[K, V]{
		forward: make(map[K]V),
		reverse: make(map[V]K),
	}
}

// Add maps k to v. It fails without modifying the map if either k or v is
// already present.
func (m *BiMap[K, V]) Add(k K, v V) error {
	if _, ok := m.forward[k]; ok {
		return fmt.Errorf("%w: %v", ErrKeyExists, k)
	}
	if _, ok := m.reverse[v]; ok {
		return fmt.Errorf("%w: %v", ErrValueExists, v)
	}
	m.forward[k] = v
	m.reverse[v] = k
	return nil
}

// Value returns the value mapped to k.
func (m *BiMap[K, V]) Value(k K) (V, bool) {
	v, ok := m.forward[k]
	return v, ok
}

// Key returns the key mapped to v.
func (m *BiMap[K, V]) Key(v V) (K, bool) {
	k, ok := m.reverse[v]
	return k, ok
}

// ContainsKey reports whether k is mapped.
func (m *BiMap[K, V]) ContainsKey(k K) bool {
	_, ok := m.forward[k]
	return ok
}

// ContainsValue reports whether v is mapped.
func (m *BiMap[K, V]) ContainsValue(v V) bool {
	_, ok := m.reverse[v]
	return ok
}

// RemoveKey deletes k and its value. It reports whether k was present.
func (m *BiMap[K, V]) RemoveKey(k K) bool {
	v, ok := m.forward[k]
	if !ok {
		return false
	}
	delete(m.forward, k)
	delete(m.reverse, v)
	return true
}

// RemoveValue deletes v and its key. It reports whether v was present.
func (m *BiMap[K, V]) RemoveValue(v V) bool {
	k, ok := m.reverse[v]
	if !ok {
		return false
	}
	delete(m.forward, k)
	delete(m.reverse, v)
	return true
}

// Len returns the number of pairs.
func (m *BiMap[K, V]) Len() int {
	return len(m.forward)
}

// All iterates over the pairs in unspecified order.
func (m *BiMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.forward {
			if !yield(k, v) {
				return
			}
		}
	}
}
