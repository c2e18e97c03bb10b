// Package typedesc converts type descriptors to and from canonical strings.
//
// A Descriptor is a structural stand-in for a runtime type: module, dotted
// qualified name, arity and (for bound generics) type arguments. The codec
// never touches runtime type handles. Resolution goes through the Module
// and ModuleLoader interfaces, and Registry is the in-process host that
// maps Go types onto descriptors.
//
// Encoded forms:
//
//	TestClass1, example.com/fixtures                    non-generic
//	Pair, example.com/fixtures<int, builtin|string, builtin>   bound generic
//	Tuple, example.com/fixtures<||>                     unbound, arity 3
//	int[], builtin                                      slice of int
//
// Key design constraints:
//   - Decode(Encode(d)) == d for every valid descriptor
//   - Unbound generics round-trip with exactly arity-1 pipes
//   - Unbound generics are never type arguments
//   - Module loads are cached per ModuleCache, never globally
package typedesc
