// Package testutil holds fixtures shared by the key, codec and storage
// tests.
package testutil

import (
	"reflect"
	"testing"

	"github.com/roach88/typekey/internal/typedesc"
)

// FixturesModule is the module all fixture types are defined in. The Go
// types below are registered under it explicitly so that golden wire
// strings do not depend on this package's import path.
const FixturesModule = "example.com/fixtures"

// TestClass1 is a plain record type.
type TestClass1 struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestClass2 is a second record type, used to scope TestClass1 keys.
type TestClass2 struct {
	Title string `json:"title"`
}

// Pair is a generic record type.
type Pair[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

// Descriptors, for tests that build keys without going through reflect.
var (
	IntType        = typedesc.New(typedesc.BuiltinModule, "int")
	StringType     = typedesc.New(typedesc.BuiltinModule, "string")
	TestClass1Type = typedesc.New(FixturesModule, "TestClass1")
	TestClass2Type = typedesc.New(FixturesModule, "TestClass2")
	ListType       = typedesc.Generic(FixturesModule, "List", 1)
	PairType       = typedesc.Generic(FixturesModule, "Pair", 2)
)

// PairIntString is the descriptor registered for Pair[int, string].
func PairIntString() typedesc.Descriptor {
	d, err := PairType.Bind(IntType, StringType)
	if err != nil {
		panic(err)
	}
	return d
}

// NewRegistry returns a registry with every fixture type defined and the
// Go fixture types registered.
func NewRegistry(t testing.TB) *typedesc.Registry {
	t.Helper()
	r := typedesc.NewRegistry()
	for _, d := range []typedesc.Descriptor{TestClass1Type, TestClass2Type, ListType, PairType} {
		if _, err := r.Define(d.Module, d.Name, d.Arity); err != nil {
			t.Fatalf("define %s: %v", d, err)
		}
	}
	register := func(rt reflect.Type, d typedesc.Descriptor) {
		if err := r.Register(rt, d); err != nil {
			t.Fatalf("register %v: %v", rt, err)
		}
	}
	register(reflect.TypeFor[TestClass1](), TestClass1Type)
	register(reflect.TypeFor[TestClass2](), TestClass2Type)
	register(reflect.TypeFor[Pair[int, string]](), PairIntString())
	return r
}

// NewCodec returns a descriptor codec over a fresh fixture registry.
func NewCodec(t testing.TB) (*typedesc.Codec, *typedesc.Registry) {
	t.Helper()
	r := NewRegistry(t)
	return typedesc.NewCodec(typedesc.NewModuleCache(r)), r
}
