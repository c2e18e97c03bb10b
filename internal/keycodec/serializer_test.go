package keycodec_test

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/keyerr"
	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/testutil"
	"github.com/roach88/typekey/internal/typedesc"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

type strategies struct {
	descriptor keycodec.TypeNamer
	qualified  keycodec.TypeNamer
	lookup     *keycodec.LookupTableNaming
}

func newStrategies(t *testing.T) strategies {
	t.Helper()
	codec, reg := testutil.NewCodec(t)
	lookup := keycodec.NewLookupTableNaming(codec)
	require.NoError(t, lookup.Alias(testutil.TestClass1Type, "tc1"))
	require.NoError(t, lookup.Alias(testutil.IntType, "i"))
	return strategies{
		descriptor: keycodec.NewDescriptorNaming(codec),
		qualified:  keycodec.NewQualifiedNaming(reg),
		lookup:     lookup,
	}
}

func TestSerializeGolden(t *testing.T) {
	s := newStrategies(t)
	twoParts := keys.New(testutil.TestClass1Type, "value").Extend(testutil.IntType, "value2")
	generic := keys.New(testutil.PairIntString(), "p+1")

	tests := []struct {
		golden string
		key    keys.Key
		naming keycodec.TypeNamer
	}{
		{"colons", keys.New(testutil.TestClass1Type, "value:value::value"), s.descriptor},
		{"type_token", keys.New(testutil.TestClass1Type, "{:}value"), s.descriptor},
		{"part_token", keys.New(testutil.TestClass1Type, "value{+}value"), s.descriptor},
		{"two_parts", twoParts, s.descriptor},
		{"empty_value", keys.New(testutil.TestClass1Type, ""), s.descriptor},
		{"generic", generic, s.descriptor},
	}

	for _, enc := range []keycodec.Encoding{keycodec.Plain{}, keycodec.Segmented{}} {
		for _, tt := range tests {
			name := enc.Name() + "_" + tt.golden
			t.Run(name, func(t *testing.T) {
				settings := keycodec.Settings{Naming: tt.naming, Encoding: enc}
				wire, err := keycodec.Serialize(tt.key, settings)
				require.NoError(t, err)
				newGoldie(t).Assert(t, name, []byte(wire))

				back, err := keycodec.Deserialize(wire, settings)
				require.NoError(t, err)
				assert.True(t, tt.key.Equal(back), "round trip of %s", tt.key)
			})
		}
	}

	other := []struct {
		golden string
		key    keys.Key
		naming keycodec.TypeNamer
	}{
		{"plain_qualified_two_parts", twoParts, s.qualified},
		{"plain_qualified_generic", generic, s.qualified},
		{"plain_lookup_two_parts", twoParts, s.lookup},
	}
	for _, tt := range other {
		t.Run(tt.golden, func(t *testing.T) {
			settings := keycodec.Settings{Naming: tt.naming, Encoding: keycodec.Plain{}}
			wire, err := keycodec.Serialize(tt.key, settings)
			require.NoError(t, err)
			newGoldie(t).Assert(t, tt.golden, []byte(wire))

			back, err := keycodec.Deserialize(wire, settings)
			require.NoError(t, err)
			assert.True(t, tt.key.Equal(back))
		})
	}
}

func TestTwoPartPlainLayout(t *testing.T) {
	s := newStrategies(t)
	k := keys.New(testutil.TestClass1Type, "value").Extend(testutil.IntType, "value2")

	wire, err := keycodec.Serialize(k, keycodec.Settings{Naming: s.descriptor, Encoding: keycodec.Plain{}})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(wire, keycodec.PartSeparator))
	assert.Equal(t, 2, strings.Count(wire, keycodec.TypeSeparator))
}

func mustBind(t *testing.T, def typedesc.Descriptor, args ...typedesc.Descriptor) typedesc.Descriptor {
	t.Helper()
	d, err := def.Bind(args...)
	require.NoError(t, err)
	return d
}

// partTypes covers every descriptor shape a key part can carry. None of the
// generic instantiations except Pair[int, string] are registered.
func partTypes(t *testing.T) []typedesc.Descriptor {
	listInt := mustBind(t, testutil.ListType, testutil.IntType)
	return []typedesc.Descriptor{
		testutil.TestClass1Type,
		testutil.IntType,
		listInt,
		mustBind(t, testutil.PairType, testutil.StringType, testutil.StringType),
		mustBind(t, testutil.PairType, listInt, testutil.TestClass1Type),
		typedesc.SliceOf(testutil.PairIntString()),
		typedesc.SliceOf(testutil.TestClass1Type),
		mustBind(t, testutil.ListType, typedesc.SliceOf(testutil.StringType)),
		testutil.PairType,
		testutil.ListType,
		typedesc.SliceOf(testutil.PairType),
	}
}

func TestRoundTripAllStrategies(t *testing.T) {
	s := newStrategies(t)
	types := partTypes(t)
	for i, d := range types[2:] {
		require.NoError(t, s.lookup.Alias(d, fmt.Sprintf("g%d", i)))
	}
	values := []string{"", "plain", ":", "+", "::", "++", "{:}", "{+}", "{{:}}", "a:+b", "+:+:", "}{", "ünï:cødé"}

	namings := []struct {
		name   string
		naming keycodec.TypeNamer
	}{
		{"descriptor", s.descriptor},
		{"qualified", s.qualified},
		{"lookup", s.lookup},
	}

	for _, enc := range []keycodec.Encoding{keycodec.Plain{}, keycodec.Segmented{}} {
		for _, n := range namings {
			t.Run(enc.Name()+"_"+n.name, func(t *testing.T) {
				settings := keycodec.Settings{Naming: n.naming, Encoding: enc}
				for _, v := range values {
					k := keys.New(testutil.TestClass1Type, v).Extend(testutil.IntType, v)
					wire, err := keycodec.Serialize(k, settings)
					require.NoError(t, err, "value %q", v)
					back, err := keycodec.Deserialize(wire, settings)
					require.NoError(t, err, "wire %q", wire)
					assert.True(t, k.Equal(back), "value %q via %s", v, wire)
				}

				for _, d := range types {
					k := keys.New(d, "v:+").Extend(testutil.IntType, "w")
					wire, err := keycodec.Serialize(k, settings)
					require.NoError(t, err, "type %s", d)
					back, err := keycodec.Deserialize(wire, settings)
					require.NoError(t, err, "type %s via %q", d, wire)
					assert.True(t, k.Equal(back), "type %s via %s", d, wire)
				}
			})
		}
	}
}

func TestEscapedValuesNeverContainSeparators(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const alphabet = "{}:+ab"

	for i := 0; i < 5000; i++ {
		n := rng.IntN(16)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.IntN(len(alphabet))])
		}
		v := b.String()

		escaped := keycodec.EscapeValue(v)
		require.NotContains(t, escaped, keycodec.TypeSeparator, "value %q", v)
		require.NotContains(t, escaped, keycodec.PartSeparator, "value %q", v)

		got, err := keycodec.UnescapeValue(escaped)
		require.NoError(t, err)
		require.Equal(t, v, got)

		fields := []keycodec.Field{{Type: "a", Value: v}, {Type: "b{", Value: v}}
		wire, err := keycodec.Plain{}.Join(fields)
		require.NoError(t, err)
		split, err := keycodec.Plain{}.Split(wire)
		require.NoError(t, err)
		require.Equal(t, fields, split, "wire %q", wire)
	}
}

func TestUnescapeRejectsOddRuns(t *testing.T) {
	for _, s := range []string{":", "+", "a:b", ":::", "+++", "::+", "a++:"} {
		t.Run(s, func(t *testing.T) {
			_, err := keycodec.UnescapeValue(s)
			assert.ErrorIs(t, err, keyerr.ErrMalformedWireFormat)
		})
	}
}

func TestDeserializeMalformed(t *testing.T) {
	s := newStrategies(t)

	tests := []struct {
		name string
		enc  keycodec.Encoding
		wire string
	}{
		{"plain empty", keycodec.Plain{}, ""},
		{"plain no type separator", keycodec.Plain{}, "TestClass1, example.com/fixtures"},
		{"plain odd colon", keycodec.Plain{}, "TestClass1, example.com/fixtures{:}a:b"},
		{"plain odd plus", keycodec.Plain{}, "TestClass1, example.com/fixtures{:}a+"},
		{"plain second type separator", keycodec.Plain{}, "TestClass1, example.com/fixtures{:}a{:}b"},
		{"plain dangling part", keycodec.Plain{}, "TestClass1, example.com/fixtures{:}a{+}"},
		{"segmented empty", keycodec.Segmented{}, ""},
		{"segmented one segment", keycodec.Segmented{}, "aW50LCBidWlsdGlu"},
		{"segmented three segments", keycodec.Segmented{}, "aW50LCBidWlsdGlu:AA==:AA=="},
		{"segmented bad base64", keycodec.Segmented{}, "!!!!:dmFsdWU="},
		{"segmented trailing comma", keycodec.Segmented{}, "aW50LCBidWlsdGlu:dmFsdWU=,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := keycodec.Deserialize(tt.wire, keycodec.Settings{Naming: s.descriptor, Encoding: tt.enc})
			require.Error(t, err)
			assert.ErrorIs(t, err, keyerr.ErrMalformedWireFormat)
		})
	}
}

func TestNamingFailuresPropagate(t *testing.T) {
	s := newStrategies(t)
	plain := func(n keycodec.TypeNamer) keycodec.Settings {
		return keycodec.Settings{Naming: n, Encoding: keycodec.Plain{}}
	}

	_, err := keycodec.Serialize(keys.New(testutil.TestClass2Type, "x"), plain(s.lookup))
	assert.ErrorIs(t, err, keyerr.ErrUnmappedType)

	_, err = keycodec.Deserialize("nope{:}x", plain(s.lookup))
	assert.ErrorIs(t, err, keyerr.ErrUnmappedType)

	_, err = keycodec.Deserialize("Nope, example.com/fixtures{:}x", plain(s.descriptor))
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)

	_, err = keycodec.Deserialize("Nope, example.com/elsewhere{:}x", plain(s.descriptor))
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedModule)

	_, err = keycodec.Deserialize("List, example.com/fixtures<{:}x", plain(s.descriptor))
	assert.ErrorIs(t, err, keyerr.ErrMalformedDescriptor)

	_, err = keycodec.Deserialize("example.com/fixtures.Nope{:}x", plain(s.qualified))
	assert.ErrorIs(t, err, keyerr.ErrUnresolvedType)
}

func TestPlainRejectsReservedTypeStrings(t *testing.T) {
	codec, _ := testutil.NewCodec(t)
	lookup := keycodec.NewLookupTableNaming(codec)
	require.NoError(t, lookup.Alias(testutil.TestClass1Type, "a{+}b"))

	_, err := keycodec.Serialize(keys.New(testutil.TestClass1Type, "x"), keycodec.Settings{Naming: lookup, Encoding: keycodec.Plain{}})
	assert.ErrorIs(t, err, keyerr.ErrMalformedWireFormat)

	// Segmented has no reserved tokens.
	wire, err := keycodec.Serialize(keys.New(testutil.TestClass1Type, "x"), keycodec.Settings{Naming: lookup, Encoding: keycodec.Segmented{}})
	require.NoError(t, err)
	back, err := keycodec.Deserialize(wire, keycodec.Settings{Naming: lookup, Encoding: keycodec.Segmented{}})
	require.NoError(t, err)
	assert.Equal(t, "x", back.Last().Value)
}

func TestSerializeZeroKey(t *testing.T) {
	s := newStrategies(t)
	_, err := keycodec.Serialize(keys.Key{}, keycodec.Settings{Naming: s.descriptor, Encoding: keycodec.Segmented{}})
	assert.ErrorIs(t, err, keys.ErrEmpty)
}

func TestSettingsRequired(t *testing.T) {
	_, err := keycodec.NewSerializer(keycodec.Settings{Encoding: keycodec.Plain{}})
	assert.Error(t, err)
	_, err = keycodec.NewSerializer(keycodec.Settings{Naming: keycodec.DescriptorNaming{}})
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	s := newStrategies(t)
	codec, _ := testutil.NewCodec(t)
	from := keycodec.DefaultSettings(codec)
	to := keycodec.Settings{Naming: s.qualified, Encoding: keycodec.Plain{}}

	k := keys.New(testutil.TestClass1Type, "value").Extend(testutil.IntType, "value2")
	wire, err := keycodec.Serialize(k, from)
	require.NoError(t, err)

	converted, err := keycodec.Convert(wire, from, to)
	require.NoError(t, err)
	assert.Equal(t, "example.com/fixtures.TestClass1{:}value{+}int{:}value2", converted)

	back, err := keycodec.Convert(converted, to, from)
	require.NoError(t, err)
	assert.Equal(t, wire, back)
}

func TestLookupTableAliases(t *testing.T) {
	lookup := keycodec.NewLookupTableNaming(nil)
	require.NoError(t, lookup.Alias(testutil.TestClass1Type, "tc1"))
	assert.Error(t, lookup.Alias(testutil.TestClass1Type, "other"), "type already aliased")
	assert.Error(t, lookup.Alias(testutil.TestClass2Type, "tc1"), "alias already used")
	assert.ErrorIs(t, lookup.Alias(testutil.TestClass2Type, ""), keyerr.ErrMalformedWireFormat)

	// Without a codec aliases parse back without module resolution.
	d, err := lookup.ParseTypeName("tc1")
	require.NoError(t, err)
	assert.Equal(t, testutil.TestClass1Type, d)
	assert.Equal(t, 1, lookup.Table().Len())
}

func TestEncodingByName(t *testing.T) {
	for _, name := range []string{"plain", "segmented"} {
		enc, err := keycodec.EncodingByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, enc.Name())
	}
	_, err := keycodec.EncodingByName("base32")
	assert.Error(t, err)
}
