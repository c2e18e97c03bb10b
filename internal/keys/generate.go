package keys

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/typekey/internal/typedesc"
)

// Generator produces fresh key values.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 values.
//
// UUIDv7 embeds a timestamp in the most significant bits, so keys created
// later sort after keys created earlier in both the plain wire form and
// most storage indexes.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined values in order, for tests.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	values []string
	idx    int
}

// NewFixedGenerator creates a generator that returns values in order.
//
// Example:
//
//	gen := NewFixedGenerator("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all values exhausted
func NewFixedGenerator(values ...string) *FixedGenerator {
	return &FixedGenerator{values: values}
}

// Generate returns the next predetermined value.
//
// Panics if all values have been consumed, to catch tests that create more
// keys than they expect.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.values) {
		panic("FixedGenerator: all values exhausted")
	}
	v := g.values[g.idx]
	g.idx++
	return v
}

// Generate returns a single-part key of type t with a generated value.
func Generate(gen Generator, t typedesc.Descriptor) Key {
	return New(t, gen.Generate())
}

// ExtendGenerated appends a part of type t with a generated value.
func (k Key) ExtendGenerated(gen Generator, t typedesc.Descriptor) Key {
	return k.Extend(t, gen.Generate())
}
