package keycodec

import (
	"github.com/roach88/typekey/internal/bimap"
	"github.com/roach88/typekey/internal/keyerr"
	"github.com/roach88/typekey/internal/typedesc"
)

// TypeNamer renders a descriptor as the type half of a key part and
// parses it back. Encode and decode must use the same namer.
type TypeNamer interface {
	TypeName(d typedesc.Descriptor) (string, error)
	ParseTypeName(s string) (typedesc.Descriptor, error)
}

// DescriptorNaming names types with the descriptor codec:
// "Pair, example.com/m<int, builtin|string, builtin>".
type DescriptorNaming struct {
	Codec *typedesc.Codec
}

// NewDescriptorNaming returns the descriptor-codec naming strategy.
func NewDescriptorNaming(codec *typedesc.Codec) DescriptorNaming {
	return DescriptorNaming{Codec: codec}
}

func (n DescriptorNaming) TypeName(d typedesc.Descriptor) (string, error) {
	return typedesc.Encode(d)
}

func (n DescriptorNaming) ParseTypeName(s string) (typedesc.Descriptor, error) {
	return n.Codec.Decode(s)
}

// QualifiedResolver resolves Go-like qualified names. *typedesc.Registry
// implements it.
type QualifiedResolver interface {
	LookupQualified(name string) (typedesc.Descriptor, error)
}

// QualifiedNaming names types in dotted form, "example.com/m.Pair[int,string]".
// Every named type must be known to the resolver.
type QualifiedNaming struct {
	Resolver QualifiedResolver
}

// NewQualifiedNaming returns the qualified-name strategy.
func NewQualifiedNaming(r QualifiedResolver) QualifiedNaming {
	return QualifiedNaming{Resolver: r}
}

func (n QualifiedNaming) TypeName(d typedesc.Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	return typedesc.QualifiedName(d), nil
}

func (n QualifiedNaming) ParseTypeName(s string) (typedesc.Descriptor, error) {
	return n.Resolver.LookupQualified(s)
}

// LookupTableNaming substitutes short aliases for types. The table maps a
// type's canonical descriptor string to its alias; types without an alias
// fail with UNMAPPED_TYPE.
//
// The table is not locked. Populate it before use and treat it as
// read-only while keys are being serialized.
type LookupTableNaming struct {
	table *bimap.BiMap[string, string]
	codec *typedesc.Codec
}

// NewLookupTableNaming returns an empty alias table. When codec is non-nil
// parsed aliases are resolved through it; otherwise they are only parsed.
func NewLookupTableNaming(codec *typedesc.Codec) *LookupTableNaming {
	return &LookupTableNaming{table: bimap.New[string, string](), codec: codec}
}

// Alias maps d to alias. Both must be unused.
func (n *LookupTableNaming) Alias(d typedesc.Descriptor, alias string) error {
	canonical, err := typedesc.Encode(d)
	if err != nil {
		return err
	}
	if alias == "" {
		return keyerr.New(keyerr.MalformedWireFormat, canonical, "alias must not be empty")
	}
	return n.table.Add(canonical, alias)
}

// Table exposes the underlying canonical-descriptor to alias mapping.
func (n *LookupTableNaming) Table() *bimap.BiMap[string, string] { return n.table }

func (n *LookupTableNaming) TypeName(d typedesc.Descriptor) (string, error) {
	canonical, err := typedesc.Encode(d)
	if err != nil {
		return "", err
	}
	alias, ok := n.table.Value(canonical)
	if !ok {
		return "", keyerr.New(keyerr.UnmappedType, canonical, "type has no alias")
	}
	return alias, nil
}

func (n *LookupTableNaming) ParseTypeName(s string) (typedesc.Descriptor, error) {
	canonical, ok := n.table.Key(s)
	if !ok {
		return typedesc.Descriptor{}, keyerr.New(keyerr.UnmappedType, s, "unknown alias")
	}
	if n.codec == nil {
		return typedesc.Parse(canonical)
	}
	return n.codec.Decode(canonical)
}
