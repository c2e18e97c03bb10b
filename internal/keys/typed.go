package keys

import (
	"errors"
	"fmt"

	"github.com/roach88/typekey/internal/typedesc"
)

// ErrSubjectMismatch is returned when a key's subject type does not match
// the Go type a Typed key expects.
var ErrSubjectMismatch = errors.New("keys: subject type mismatch")

// Typed is a key whose subject type is known to be T's descriptor.
//
// The check happens once at construction. Typed carries no state beyond
// the key itself.
type Typed[T any] struct {
	key Key
}

// NewTyped returns a single-part key of T.
func NewTyped[T any](reg *typedesc.Registry, value string) (Typed[T], error) {
	d, err := typedesc.DescriptorOf[T](reg)
	if err != nil {
		return Typed[T]{}, err
	}
	return Typed[T]{key: New(d, value)}, nil
}

// AsTyped asserts that k's subject is T.
func AsTyped[T any](reg *typedesc.Registry, k Key) (Typed[T], error) {
	if k.IsZero() {
		return Typed[T]{}, ErrEmpty
	}
	d, err := typedesc.DescriptorOf[T](reg)
	if err != nil {
		return Typed[T]{}, err
	}
	if !k.Subject().Equal(d) {
		return Typed[T]{}, fmt.Errorf("%w: key subject is %s, want %s", ErrSubjectMismatch, k.Subject(), d)
	}
	return Typed[T]{key: k}, nil
}

// ExtendTyped appends a part of type T to k, producing a key of T.
func ExtendTyped[T any](reg *typedesc.Registry, k Key, value string) (Typed[T], error) {
	d, err := typedesc.DescriptorOf[T](reg)
	if err != nil {
		return Typed[T]{}, err
	}
	if k.IsZero() {
		return Typed[T]{key: New(d, value)}, nil
	}
	return Typed[T]{key: k.Extend(d, value)}, nil
}

// Key returns the untyped key.
func (t Typed[T]) Key() Key { return t.key }

// SkipFirst drops the first part. The subject, and therefore T, is kept.
func (t Typed[T]) SkipFirst() (Typed[T], error) {
	k, err := t.key.SkipFirst()
	if err != nil {
		return Typed[T]{}, err
	}
	return Typed[T]{key: k}, nil
}

// Value returns the value of the subject part.
func (t Typed[T]) Value() string { return t.key.Last().Value }

// Equal reports whether t and other wrap equal keys.
func (t Typed[T]) Equal(other Typed[T]) bool { return t.key.Equal(other.key) }

func (t Typed[T]) String() string { return t.key.String() }
