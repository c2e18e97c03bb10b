package typedesc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typekey/internal/keyerr"
)

type widget struct{}

type gadget struct{}

type box[T any] struct{ v T }

type widgetIDs []string

const thisPackage = "github.com/roach88/typekey/internal/typedesc"

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		rt   reflect.Type
		name string
	}{
		{reflect.TypeFor[int](), "int"},
		{reflect.TypeFor[string](), "string"},
		{reflect.TypeFor[bool](), "bool"},
		{reflect.TypeFor[byte](), "uint8"},
		{reflect.TypeFor[rune](), "int32"},
		{reflect.TypeFor[float64](), "float64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Of(tt.rt)
			require.NoError(t, err)
			assert.Equal(t, New(BuiltinModule, tt.name), d)

			rt, ok := r.GoType(d)
			require.True(t, ok)
			assert.Equal(t, tt.rt, rt)
		})
	}
}

func TestRegistryOfNamedType(t *testing.T) {
	r := NewRegistry()

	d, err := DescriptorOf[widget](r)
	require.NoError(t, err)
	assert.Equal(t, New(thisPackage, "widget"), d)

	again, err := DescriptorOf[widget](r)
	require.NoError(t, err)
	assert.True(t, d.Equal(again))

	// First use defines the type so it decodes.
	c := NewCodec(NewModuleCache(r))
	s, err := Encode(d)
	require.NoError(t, err)
	got, err := c.Decode(s)
	require.NoError(t, err)
	assert.True(t, d.Equal(got))

	rt, ok := r.GoType(got)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[widget](), rt)
}

func TestRegistryOfSlices(t *testing.T) {
	r := NewRegistry()

	d, err := DescriptorOf[[]int](r)
	require.NoError(t, err)
	assert.Equal(t, "int[], builtin", d.String())

	rt, ok := r.GoType(d)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[[]int](), rt)

	nested, err := DescriptorOf[[][]gadget](r)
	require.NoError(t, err)
	assert.Equal(t, "gadget[][], "+thisPackage, nested.String())

	named, err := DescriptorOf[widgetIDs](r)
	require.NoError(t, err)
	assert.Equal(t, New(thisPackage, "widgetIDs"), named, "named slice types are ordinary named types")
}

func TestRegistryGenericsRequireRegistration(t *testing.T) {
	r := NewRegistry()

	_, err := DescriptorOf[box[int]](r)
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)

	def := r.MustDefine(thisPackage, "box", 1)
	bound, err := def.Bind(New(BuiltinModule, "int"))
	require.NoError(t, err)
	require.NoError(t, r.Register(reflect.TypeFor[box[int]](), bound))

	d, err := DescriptorOf[box[int]](r)
	require.NoError(t, err)
	assert.Equal(t, "box, "+thisPackage+"<int, builtin>", d.String())

	rt, ok := r.GoType(d)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[box[int]](), rt)
}

func TestRegistryRejectsUnsupportedTypes(t *testing.T) {
	r := NewRegistry()

	for _, rt := range []reflect.Type{
		reflect.TypeFor[*widget](),
		reflect.TypeFor[map[string]int](),
		reflect.TypeFor[error](),
		reflect.TypeFor[struct{ A int }](),
	} {
		t.Run(rt.String(), func(t *testing.T) {
			_, err := r.Of(rt)
			assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)
		})
	}
}

func TestRegistryRegisterConflicts(t *testing.T) {
	r := NewRegistry()
	wd := New(thisPackage, "widget")
	require.NoError(t, r.Register(reflect.TypeFor[widget](), wd))
	require.NoError(t, r.Register(reflect.TypeFor[widget](), wd), "re-registering the same pair is a no-op")

	err := r.Register(reflect.TypeFor[widget](), New(thisPackage, "other"))
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)

	err = r.Register(reflect.TypeFor[gadget](), wd)
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)

	err = r.Register(reflect.TypeFor[gadget](), Generic(thisPackage, "gadget", 1))
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor, "unbound generics have no Go type")
}

func TestRegistryRegisterDefinesArguments(t *testing.T) {
	r := NewRegistry()
	inner, err := Generic("example.com/a", "Inner", 1).Bind(New("example.com/b", "Leaf"))
	require.NoError(t, err)
	outer, err := Generic("example.com/a", "Outer", 1).Bind(SliceOf(inner))
	require.NoError(t, err)
	require.NoError(t, r.Register(reflect.TypeFor[gadget](), outer))

	c := NewCodec(NewModuleCache(r))
	got, err := c.Decode(outer.String())
	require.NoError(t, err)
	assert.True(t, outer.Equal(got))
}

func TestRegistryLoadModule(t *testing.T) {
	r := NewRegistry()
	r.MustDefine(fixtures, "TestClass1", 0)

	m, err := r.LoadModule(fixtures)
	require.NoError(t, err)
	assert.Equal(t, fixtures, m.Path())

	d, ok := m.Lookup("TestClass1", 0)
	require.True(t, ok)
	assert.Equal(t, New(fixtures, "TestClass1"), d)

	_, ok = m.Lookup("TestClass1", 1)
	assert.False(t, ok)

	_, err = r.LoadModule("example.com/missing")
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedModule)
}

func TestRegistryQualifiedNames(t *testing.T) {
	r := newTestRegistry(t)
	pair, err := Generic(fixtures, "Pair", 2).Bind(New(BuiltinModule, "int"), SliceOf(New(BuiltinModule, "string")))
	require.NoError(t, err)
	require.NoError(t, r.Register(reflect.TypeFor[gadget](), pair))

	tests := []struct {
		d        Descriptor
		expected string
	}{
		{New(BuiltinModule, "int"), "int"},
		{New(fixtures, "TestClass1"), "example.com/fixtures.TestClass1"},
		{Generic(fixtures, "Pair", 2), "example.com/fixtures.Pair[_,_]"},
		{Generic(fixtures, "List", 1), "example.com/fixtures.List[_]"},
		{pair, "example.com/fixtures.Pair[int,string[]]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, QualifiedName(tt.d))
			got, err := r.LookupQualified(tt.expected)
			require.NoError(t, err)
			assert.True(t, tt.d.Equal(got))
		})
	}

	slice, err := r.LookupQualified("example.com/fixtures.TestClass1[][]")
	require.NoError(t, err)
	assert.Equal(t, SliceOf(SliceOf(New(fixtures, "TestClass1"))), slice)

	_, err = r.LookupQualified("example.com/fixtures.Nope")
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)
	_, err = r.LookupQualified("example.com/fixtures.Nope[]")
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)
}

func TestRegistryLookupQualifiedInstantiations(t *testing.T) {
	r := newTestRegistry(t)
	intD, strD := New(BuiltinModule, "int"), New(BuiltinModule, "string")
	list, pair := Generic(fixtures, "List", 1), Generic(fixtures, "Pair", 2)
	bind := func(def Descriptor, args ...Descriptor) Descriptor {
		d, err := def.Bind(args...)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		d        Descriptor
		expected string
	}{
		{bind(list, intD), "example.com/fixtures.List[int]"},
		{bind(pair, strD, strD), "example.com/fixtures.Pair[string,string]"},
		{bind(pair, bind(list, intD), New(fixtures, "TestClass1")),
			"example.com/fixtures.Pair[example.com/fixtures.List[int],example.com/fixtures.TestClass1]"},
		{SliceOf(bind(pair, intD, strD)), "example.com/fixtures.Pair[][int,string]"},
		{bind(list, SliceOf(bind(pair, intD, SliceOf(strD)))), "example.com/fixtures.List[example.com/fixtures.Pair[][int,string[]]]"},
		{SliceOf(pair), "example.com/fixtures.Pair[][_,_]"},
		{bind(Generic(fixtures, "Tuple", 3), intD, intD, intD), "example.com/fixtures.Tuple[int,int,int]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, QualifiedName(tt.d))
			got, err := r.LookupQualified(tt.expected)
			require.NoError(t, err)
			assert.True(t, tt.d.Equal(got), "got %s", got)
		})
	}
}

func TestRegistryLookupQualifiedRejects(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		want error
	}{
		{"example.com/fixtures.List[example.com/fixtures.Nope]", keyerr.ErrUnresolvedType},
		{"example.com/fixtures.List[int,int]", keyerr.ErrUnresolvedType},
		{"example.com/fixtures.Pair[int,_]", keyerr.ErrMalformedDescriptor},
		{"example.com/fixtures.Pair[int,]", keyerr.ErrMalformedDescriptor},
		{"example.com/fixtures.List[int", keyerr.ErrMalformedDescriptor},
		{"example.com/fixtures.List[int]]", keyerr.ErrMalformedDescriptor},
		{"[int]", keyerr.ErrMalformedDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.LookupQualified(tt.name)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistryRejectsQualifiedNameCollisions(t *testing.T) {
	r := NewRegistry()
	first := r.MustDefine("a.b", "C", 0)

	_, err := r.Define("a", "b.C", 0)
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)

	got, err := r.LookupQualified("a.b.C")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	err = r.Register(reflect.TypeFor[widget](), New("a", "b.C"))
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)
	_, ok := r.GoType(New("a", "b.C"))
	assert.False(t, ok)
}

func TestRegistryNormalizesNames(t *testing.T) {
	r := NewRegistry()
	composed := "Caf\u00e9"
	decomposed := "Cafe\u0301"
	r.MustDefine(fixtures, decomposed, 0)

	c := NewCodec(NewModuleCache(r))
	got, err := c.Decode(composed + ", " + fixtures)
	require.NoError(t, err)
	assert.Equal(t, composed, got.Name)

	got, err = c.Decode(decomposed + ", " + fixtures)
	require.NoError(t, err)
	assert.Equal(t, composed, got.Name)
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry()
	r.MustDefine("b.example", "Z", 0)
	r.MustDefine("a.example", "Y", 2)
	r.MustDefine("a.example", "Y", 1)

	var got []string
	for _, d := range r.Definitions() {
		if d.Module == BuiltinModule {
			continue
		}
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"Y, a.example<>", "Y, a.example<|>", "Z, b.example"}, got)
}

func TestRegistryDefineRejectsInvalidNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.Define(fixtures, "Bad<Name>", 0)
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)
	_, err = r.Define(fixtures, "X", -1)
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)
	assert.Panics(t, func() { r.MustDefine("", "X", 0) })
}
