package typedesc

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/typekey/internal/keyerr"
)

// BuiltinModule is the module of Go's predeclared types.
const BuiltinModule = "builtin"

var builtinTypes = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[string](),
	reflect.TypeFor[int](),
	reflect.TypeFor[int8](),
	reflect.TypeFor[int16](),
	reflect.TypeFor[int32](),
	reflect.TypeFor[int64](),
	reflect.TypeFor[uint](),
	reflect.TypeFor[uint8](),
	reflect.TypeFor[uint16](),
	reflect.TypeFor[uint32](),
	reflect.TypeFor[uint64](),
	reflect.TypeFor[uintptr](),
	reflect.TypeFor[float32](),
	reflect.TypeFor[float64](),
	reflect.TypeFor[complex64](),
	reflect.TypeFor[complex128](),
}

type typeKey struct {
	name  string
	arity int
}

// Registry is the in-process host environment for the codec: it defines
// modules and their types, associates Go types with descriptors, and
// resolves qualified names.
//
// Module and type names are NFC-normalized on the way in and on lookup, so
// composed and decomposed spellings of the same name resolve identically.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	modules   map[string]*registryModule
	goTypes   map[reflect.Type]Descriptor
	byString  map[string]reflect.Type
	qualified map[string]Descriptor
}

// NewRegistry returns a registry with the builtin module defined.
func NewRegistry() *Registry {
	r := &Registry{
		modules:   make(map[string]*registryModule),
		goTypes:   make(map[reflect.Type]Descriptor),
		byString:  make(map[string]reflect.Type),
		qualified: make(map[string]Descriptor),
	}
	for _, rt := range builtinTypes {
		d := New(BuiltinModule, rt.Name())
		_ = r.defineLocked(d)
		r.goTypes[rt] = d
		r.byString[d.String()] = rt
	}
	return r
}

// Define declares a type in a module. Generic types are declared with their
// arity and no arguments. Defining the same type twice is a no-op.
func (r *Registry) Define(module, name string, arity int) (Descriptor, error) {
	d := Generic(norm.NFC.String(module), norm.NFC.String(name), arity)
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.defineLocked(d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// MustDefine is like Define but panics on error.
// Use only in tests or when inputs are known to be valid.
func (r *Registry) MustDefine(module, name string, arity int) Descriptor {
	d, err := r.Define(module, name, arity)
	if err != nil {
		panic(err)
	}
	return d
}

// defineLocked fails if def's qualified name already names a different
// type, as "a.b.C" does for both C in module a.b and b.C in module a.
func (r *Registry) defineLocked(def Descriptor) error {
	q := QualifiedName(def)
	if existing, ok := r.qualified[q]; ok && !existing.Equal(def) {
		return keyerr.New(keyerr.MalformedDescriptor, def.String(),
			"qualified name %s already names %s", q, existing)
	}
	m := r.modules[def.Module]
	if m == nil {
		m = &registryModule{reg: r, path: def.Module, types: make(map[typeKey]Descriptor)}
		r.modules[def.Module] = m
	}
	m.types[typeKey{def.Name, def.Arity}] = def
	r.qualified[q] = def
	return nil
}

// defineAllLocked defines d's definition and, recursively, those of its
// arguments, so every node of d resolves on decode.
func (r *Registry) defineAllLocked(d Descriptor) error {
	def := d.Definition()
	if elem, ok := def.Elem(); ok {
		def = elem.Definition()
	}
	if err := r.defineLocked(def); err != nil {
		return err
	}
	for _, a := range d.Args {
		if err := r.defineAllLocked(a); err != nil {
			return err
		}
	}
	return nil
}

// Register associates the Go type rt with d. The definitions d refers to
// are defined as a side effect. Go has no runtime generic instantiation, so
// each instantiation used as a key part (Pair[int, string], say) must be
// registered explicitly.
func (r *Registry) Register(rt reflect.Type, d Descriptor) error {
	d = normalize(d)
	if err := d.Validate(); err != nil {
		return err
	}
	if d.IsUnbound() {
		return keyerr.New(keyerr.MalformedDescriptor, d.String(), "cannot register a Go type for an unbound generic")
	}
	key := d.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.goTypes[rt]; ok {
		if existing.Equal(d) {
			return nil
		}
		return keyerr.New(keyerr.MalformedDescriptor, key, "%v is already registered as %s", rt, existing)
	}
	if other, ok := r.byString[key]; ok && other != rt {
		return keyerr.New(keyerr.MalformedDescriptor, key, "descriptor is already registered for %v", other)
	}
	q := QualifiedName(d)
	if existing, ok := r.qualified[q]; ok && !existing.Equal(d) {
		return keyerr.New(keyerr.MalformedDescriptor, key, "qualified name %s already names %s", q, existing)
	}
	if err := r.defineAllLocked(d); err != nil {
		return err
	}
	r.goTypes[rt] = d
	r.byString[key] = rt
	r.qualified[q] = d
	return nil
}

// Of returns the descriptor of the Go type rt.
//
// Registered types are returned as registered. Otherwise unnamed slices map
// to SliceOf their element, and named non-generic types map to
// {PkgPath, Name} and are registered on first use. Generic instantiations
// must be registered explicitly.
func (r *Registry) Of(rt reflect.Type) (Descriptor, error) {
	r.mu.RLock()
	d, ok := r.goTypes[rt]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	switch {
	case rt.Kind() == reflect.Slice && rt.Name() == "":
		elem, err := r.Of(rt.Elem())
		if err != nil {
			return Descriptor{}, err
		}
		return SliceOf(elem), nil
	case rt.Name() == "" || rt.PkgPath() == "":
		return Descriptor{}, keyerr.New(keyerr.UnresolvedType, rt.String(), "type has no descriptor")
	case strings.ContainsRune(rt.Name(), '['):
		return Descriptor{}, keyerr.New(keyerr.UnresolvedType, rt.String(),
			"generic instantiation must be registered explicitly")
	}

	d = New(rt.PkgPath(), rt.Name())
	if err := r.Register(rt, d); err != nil {
		return Descriptor{}, err
	}
	return normalize(d), nil
}

// DescriptorOf returns the descriptor of T.
func DescriptorOf[T any](r *Registry) (Descriptor, error) {
	return r.Of(reflect.TypeFor[T]())
}

// GoType returns the Go type registered for d. Slices of registered types
// resolve to the corresponding Go slice type.
func (r *Registry) GoType(d Descriptor) (reflect.Type, bool) {
	r.mu.RLock()
	rt, ok := r.byString[normalize(d).String()]
	r.mu.RUnlock()
	if ok {
		return rt, true
	}
	if elem, isSlice := d.Elem(); isSlice {
		if et, ok := r.GoType(elem); ok {
			return reflect.SliceOf(et), true
		}
	}
	return nil, false
}

// LoadModule implements ModuleLoader.
func (r *Registry) LoadModule(path string) (Module, error) {
	r.mu.RLock()
	m, ok := r.modules[norm.NFC.String(path)]
	r.mu.RUnlock()
	if !ok {
		return nil, keyerr.New(keyerr.UnresolvedModule, path, "module not defined")
	}
	return m, nil
}

// LookupQualified resolves a name produced by QualifiedName. Bound
// generics resolve through their definition, so "m.Pair[int,m.User]" needs
// only Pair and User defined. A trailing slice suffix on a name resolves to
// a slice of the named element type.
func (r *Registry) LookupQualified(name string) (Descriptor, error) {
	name = norm.NFC.String(name)
	r.mu.RLock()
	d, ok := r.qualified[name]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	head, args, err := splitQualified(name)
	if err != nil {
		return Descriptor{}, err
	}
	def, ok := r.lookupDefinition(head, len(args))
	if !ok {
		return Descriptor{}, keyerr.New(keyerr.UnresolvedType, name, "no type with qualified name")
	}
	if len(args) == 0 || slices.Equal(args, unboundArgs(len(args))) {
		return def, nil
	}
	bound := make([]Descriptor, len(args))
	for i, a := range args {
		if a == unboundArg {
			return Descriptor{}, keyerr.New(keyerr.MalformedDescriptor, name, "mixed bound and unbound arguments")
		}
		if bound[i], err = r.LookupQualified(a); err != nil {
			return Descriptor{}, err
		}
	}
	return def.Bind(bound...)
}

// lookupDefinition finds the definition named head with the given arity,
// peeling slice suffixes off head when the slice itself is not defined.
func (r *Registry) lookupDefinition(head string, arity int) (Descriptor, bool) {
	key := head
	if arity > 0 {
		key += "[" + strings.Join(unboundArgs(arity), ",") + "]"
	}
	r.mu.RLock()
	d, ok := r.qualified[key]
	r.mu.RUnlock()
	if ok {
		return d, true
	}
	if elem, isSlice := strings.CutSuffix(head, SliceSuffix); isSlice && elem != "" {
		if d, ok := r.lookupDefinition(elem, arity); ok {
			return SliceOf(d), true
		}
	}
	return Descriptor{}, false
}

const unboundArg = "_"

func unboundArgs(n int) []string {
	args := make([]string, n)
	for i := range args {
		args[i] = unboundArg
	}
	return args
}

// splitQualified splits "m.Name[][a,b[c]]" into "m.Name[]" and its
// top-level arguments "a" and "b[c]". Slice suffixes stay on the head.
func splitQualified(name string) (head string, args []string, err error) {
	open := -1
	for i := 0; i < len(name); i++ {
		if name[i] != '[' {
			continue
		}
		if strings.HasPrefix(name[i:], SliceSuffix) {
			i++
			continue
		}
		open = i
		break
	}
	if open < 0 {
		return name, nil, nil
	}
	if open == 0 || !strings.HasSuffix(name, "]") {
		return "", nil, keyerr.New(keyerr.MalformedDescriptor, name, "unbalanced brackets in qualified name")
	}

	body := name[open+1 : len(name)-1]
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return "", nil, keyerr.New(keyerr.MalformedDescriptor, name, "unbalanced brackets in qualified name")
			}
		case ',':
			if depth == 0 {
				args = append(args, body[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, keyerr.New(keyerr.MalformedDescriptor, name, "unbalanced brackets in qualified name")
	}
	args = append(args, body[start:])
	for _, a := range args {
		if a == "" {
			return "", nil, keyerr.New(keyerr.MalformedDescriptor, name, "empty type argument")
		}
	}
	return name[:open], args, nil
}

// Definitions returns every defined type, sorted by module then name.
func (r *Registry) Definitions() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []Descriptor
	for _, m := range r.modules {
		for _, d := range m.types {
			defs = append(defs, d)
		}
	}
	slices.SortFunc(defs, func(a, b Descriptor) int {
		if c := strings.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return a.Arity - b.Arity
	})
	return defs
}

// QualifiedName renders d in Go-like dotted form: "module.Name",
// "module.Name[arg,arg]" for bound generics and "module.Name[_,_]" for
// unbound ones. Builtin types render without a module.
func QualifiedName(d Descriptor) string {
	var b strings.Builder
	writeQualified(&b, d)
	return b.String()
}

func writeQualified(b *strings.Builder, d Descriptor) {
	if d.Module != BuiltinModule {
		b.WriteString(d.Module)
		b.WriteByte('.')
	}
	b.WriteString(d.Name)
	if d.Arity <= 0 {
		return
	}
	b.WriteByte('[')
	if len(d.Args) == 0 {
		b.WriteString(strings.Join(unboundArgs(d.Arity), ","))
	} else {
		for i, a := range d.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeQualified(b, a)
		}
	}
	b.WriteByte(']')
}

func normalize(d Descriptor) Descriptor {
	out := Descriptor{
		Module: norm.NFC.String(d.Module),
		Name:   norm.NFC.String(d.Name),
		Arity:  d.Arity,
	}
	for _, a := range d.Args {
		out.Args = append(out.Args, normalize(a))
	}
	return out
}

type registryModule struct {
	reg   *Registry
	path  string
	types map[typeKey]Descriptor
}

func (m *registryModule) Path() string { return m.path }

func (m *registryModule) Lookup(name string, arity int) (Descriptor, bool) {
	name = norm.NFC.String(name)
	m.reg.mu.RLock()
	d, ok := m.types[typeKey{name, arity}]
	m.reg.mu.RUnlock()
	if ok {
		return d, true
	}
	if elemName, isSlice := strings.CutSuffix(name, SliceSuffix); isSlice && elemName != "" {
		elem, ok := m.Lookup(elemName, arity)
		if !ok {
			return Descriptor{}, false
		}
		return SliceOf(elem), true
	}
	return Descriptor{}, false
}
