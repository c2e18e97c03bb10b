package typedesc

import (
	"strings"

	"github.com/roach88/typekey/internal/keyerr"
)

// SliceSuffix marks a slice (array) type. It is an opaque literal suffix on
// the qualified name, not a separate grammar production.
const SliceSuffix = "[]"

// Descriptor identifies a type for codec purposes.
//
// A valid descriptor is in exactly one of three states:
//   - non-generic: Arity == 0, no Args
//   - bound generic: Arity == len(Args) > 0
//   - unbound generic: Arity > 0, Args empty
//
// Descriptors are values. Constructors return fresh Args slices and no
// method mutates its receiver.
type Descriptor struct {
	// Module identifies the compiled unit defining the type (a Go package
	// path, or "builtin" for predeclared types).
	Module string `json:"module"`

	// Name is the dotted qualified name without any arity suffix.
	Name string `json:"name"`

	// Arity is the number of generic type parameters.
	Arity int `json:"arity,omitempty"`

	// Args are the bound type arguments, in declaration order.
	Args []Descriptor `json:"args,omitempty"`
}

// New returns a non-generic descriptor.
func New(module, name string) Descriptor {
	return Descriptor{Module: module, Name: name}
}

// Generic returns an unbound generic descriptor with the given arity.
func Generic(module, name string, arity int) Descriptor {
	return Descriptor{Module: module, Name: name, Arity: arity}
}

// SliceOf returns the descriptor of a slice whose elements are elem.
// The element's arity and arguments carry over so that a slice of a bound
// generic encodes as "Pair[], m<A, m|B, m>".
func SliceOf(elem Descriptor) Descriptor {
	return Descriptor{
		Module: elem.Module,
		Name:   elem.Name + SliceSuffix,
		Arity:  elem.Arity,
		Args:   cloneArgs(elem.Args),
	}
}

// IsGeneric reports whether d declares type parameters.
func (d Descriptor) IsGeneric() bool { return d.Arity > 0 }

// IsBound reports whether d is a generic type with all arguments supplied.
func (d Descriptor) IsBound() bool { return d.Arity > 0 && len(d.Args) == d.Arity }

// IsUnbound reports whether d is an open generic definition.
func (d Descriptor) IsUnbound() bool { return d.Arity > 0 && len(d.Args) == 0 }

// IsSlice reports whether d carries the slice suffix.
func (d Descriptor) IsSlice() bool { return strings.HasSuffix(d.Name, SliceSuffix) }

// Elem returns the element descriptor of a slice. ok is false if d is not
// a slice.
func (d Descriptor) Elem() (elem Descriptor, ok bool) {
	if !d.IsSlice() {
		return Descriptor{}, false
	}
	return Descriptor{
		Module: d.Module,
		Name:   strings.TrimSuffix(d.Name, SliceSuffix),
		Arity:  d.Arity,
		Args:   cloneArgs(d.Args),
	}, true
}

// Definition returns the unbound generic definition of d. For non-generic
// and unbound descriptors it returns d unchanged.
func (d Descriptor) Definition() Descriptor {
	return Descriptor{Module: d.Module, Name: d.Name, Arity: d.Arity}
}

// Bind instantiates the unbound generic d with the given arguments.
func (d Descriptor) Bind(args ...Descriptor) (Descriptor, error) {
	if !d.IsUnbound() {
		return Descriptor{}, keyerr.New(keyerr.MalformedDescriptor, d.String(),
			"cannot bind arguments to a type that is not an unbound generic")
	}
	if len(args) != d.Arity {
		return Descriptor{}, keyerr.New(keyerr.MalformedDescriptor, d.String(),
			"type takes %d arguments, got %d", d.Arity, len(args))
	}
	for _, a := range args {
		if a.IsUnbound() {
			return Descriptor{}, keyerr.New(keyerr.MalformedDescriptor, a.String(),
				"unbound generic cannot be used as a type argument")
		}
	}
	bound := d.Definition()
	bound.Args = cloneArgs(args)
	return bound, nil
}

// BaseName returns the non-generic form "{Name}, {Module}".
func (d Descriptor) BaseName() string {
	return d.Name + ", " + d.Module
}

// Validate checks the three-state invariant recursively, and that names
// contain none of the grammar's reserved characters.
func (d Descriptor) Validate() error {
	if d.Arity < 0 {
		return keyerr.New(keyerr.MalformedDescriptor, d.BaseName(), "negative arity %d", d.Arity)
	}
	if d.Name == "" || d.Module == "" {
		return keyerr.New(keyerr.MalformedDescriptor, d.String(), "module and name are required")
	}
	if strings.ContainsAny(d.Name, reservedChars) || strings.ContainsAny(d.Module, reservedChars) {
		return keyerr.New(keyerr.MalformedDescriptor, d.String(), "name contains a reserved character")
	}
	if strings.Contains(d.Name, nameSeparator) || strings.Contains(d.Module, nameSeparator) {
		return keyerr.New(keyerr.MalformedDescriptor, d.String(), "name contains the module separator")
	}
	switch {
	case d.Arity == 0 && len(d.Args) > 0:
		return keyerr.New(keyerr.MalformedDescriptor, d.String(), "non-generic type has type arguments")
	case len(d.Args) > 0 && len(d.Args) != d.Arity:
		return keyerr.New(keyerr.MalformedDescriptor, d.String(),
			"type takes %d arguments, got %d", d.Arity, len(d.Args))
	}
	for _, a := range d.Args {
		if a.IsUnbound() {
			return keyerr.New(keyerr.MalformedDescriptor, a.String(),
				"unbound generic cannot be used as a type argument")
		}
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports structural equality.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.Module != other.Module || d.Name != other.Name || d.Arity != other.Arity || len(d.Args) != len(other.Args) {
		return false
	}
	for i := range d.Args {
		if !d.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// String renders d in descriptor grammar without validating it.
// Use Encode when the result must be decodable.
func (d Descriptor) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d Descriptor) write(b *strings.Builder) {
	b.WriteString(d.BaseName())
	if d.Arity <= 0 {
		return
	}
	b.WriteByte(openArgs)
	if len(d.Args) == 0 {
		b.WriteString(strings.Repeat(string(argSeparator), d.Arity-1))
	} else {
		for i, a := range d.Args {
			if i > 0 {
				b.WriteByte(argSeparator)
			}
			a.write(b)
		}
	}
	b.WriteByte(closeArgs)
}

func cloneArgs(args []Descriptor) []Descriptor {
	if len(args) == 0 {
		return nil
	}
	out := make([]Descriptor, len(args))
	copy(out, args)
	return out
}
