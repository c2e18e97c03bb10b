package keys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/typekey/internal/typedesc"
)

var (
	// ErrEmpty is returned when an operation would produce a key with no
	// parts.
	ErrEmpty = errors.New("keys: a key needs at least one part")

	// ErrNotSingle is returned by Single for keys with more than one part.
	ErrNotSingle = errors.New("keys: key has more than one part")
)

// Part is one (type, value) element of a key. The value may be empty.
type Part struct {
	Type  typedesc.Descriptor
	Value string
}

// Equal reports whether p and other have equal types and values.
func (p Part) Equal(other Part) bool {
	return p.Value == other.Value && p.Type.Equal(other.Type)
}

// Key is an ordered, non-empty sequence of parts. The type of the last
// part is the key's subject type.
//
// Keys are immutable: every operation returns a new Key and never writes
// to a slice reachable from another Key. They may be shared between
// goroutines without synchronization.
//
// The zero Key has no parts and is only useful as a "no key" value; its
// IsZero method reports true.
type Key struct {
	parts []Part
}

// New returns a single-part key.
func New(t typedesc.Descriptor, value string) Key {
	return Key{parts: []Part{{Type: t, Value: value}}}
}

// FromParts returns a key made of parts, in order.
func FromParts(parts ...Part) (Key, error) {
	if len(parts) == 0 {
		return Key{}, ErrEmpty
	}
	return Key{parts: clone(parts)}, nil
}

// MustFromParts is like FromParts but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromParts(parts ...Part) Key {
	k, err := FromParts(parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return len(k.parts) == 0 }

// Len returns the number of parts.
func (k Key) Len() int { return len(k.parts) }

// Parts returns a copy of k's parts.
func (k Key) Parts() []Part { return clone(k.parts) }

// Part returns the i-th part. It panics if i is out of range.
func (k Key) Part(i int) Part { return k.parts[i] }

// Extend returns a new key with (t, value) appended. k is unchanged.
func (k Key) Extend(t typedesc.Descriptor, value string) Key {
	parts := make([]Part, len(k.parts), len(k.parts)+1)
	copy(parts, k.parts)
	return Key{parts: append(parts, Part{Type: t, Value: value})}
}

// SkipFirst returns k without its first part.
func (k Key) SkipFirst() (Key, error) {
	if len(k.parts) < 2 {
		return Key{}, ErrEmpty
	}
	return Key{parts: clone(k.parts[1:])}, nil
}

// SkipLast returns k without its last part. The result's subject is the
// type of k's second-to-last part.
func (k Key) SkipLast() (Key, error) {
	if len(k.parts) < 2 {
		return Key{}, ErrEmpty
	}
	return Key{parts: clone(k.parts[:len(k.parts)-1])}, nil
}

// First returns the first part. It panics on the zero Key.
func (k Key) First() Part { return k.parts[0] }

// Last returns the last part. It panics on the zero Key.
func (k Key) Last() Part { return k.parts[len(k.parts)-1] }

// Single returns the only part of a one-part key.
func (k Key) Single() (Part, error) {
	switch len(k.parts) {
	case 0:
		return Part{}, ErrEmpty
	case 1:
		return k.parts[0], nil
	default:
		return Part{}, fmt.Errorf("%w: %d parts", ErrNotSingle, len(k.parts))
	}
}

// Subject returns the type of the last part.
func (k Key) Subject() typedesc.Descriptor {
	if len(k.parts) == 0 {
		return typedesc.Descriptor{}
	}
	return k.Last().Type
}

// Equal reports whether k and other have pairwise equal parts in the same
// order.
func (k Key) Equal(other Key) bool {
	if len(k.parts) != len(other.parts) {
		return false
	}
	for i := range k.parts {
		if !k.parts[i].Equal(other.parts[i]) {
			return false
		}
	}
	return true
}

// Hash returns an order-sensitive 64-bit hash of k. Equal keys have equal
// hashes.
//
// Each part contributes its descriptor string and value, both length
// prefixed, so ("ab", "c") and ("a", "bc") hash differently.
func (k Key) Hash() uint64 {
	h := xxhash.New()
	var n [binary.MaxVarintLen64]byte
	write := func(s string) {
		_, _ = h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
		_, _ = h.WriteString(s)
	}
	for _, p := range k.parts {
		write(p.Type.String())
		write(p.Value)
	}
	return h.Sum64()
}

// String renders k for humans, e.g.
// `example.com/fixtures.TestClass1("a") / int("1")`. It is not a wire
// format; use keycodec for that.
func (k Key) String() string {
	var b strings.Builder
	for i, p := range k.parts {
		if i > 0 {
			b.WriteString(" / ")
		}
		b.WriteString(typedesc.QualifiedName(p.Type))
		b.WriteByte('(')
		b.WriteString(strconv.Quote(p.Value))
		b.WriteByte(')')
	}
	return b.String()
}

func clone(parts []Part) []Part {
	out := make([]Part, len(parts))
	copy(out, parts)
	return out
}
