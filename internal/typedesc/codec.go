package typedesc

import (
	"strings"

	"github.com/roach88/typekey/internal/keyerr"
)

// Grammar:
//
//	descriptor := baseName ["<" args ">"]
//	args       := descriptor ("|" descriptor)*   ; bound
//	            | "|"*                            ; unbound: (arity-1) pipes
//	baseName   := qualifiedName ", " module
const (
	openArgs      = '<'
	closeArgs     = '>'
	argSeparator  = '|'
	nameSeparator = ", "
	reservedChars = "<>|"
)

// Encode renders d as a canonical descriptor string.
// Returns a MalformedDescriptor error if d violates the descriptor invariant.
func Encode(d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d.String(), nil
}

// Parse builds a descriptor from s by syntax alone. Arity is the number of
// bracketed arguments; nothing is resolved. Use Codec.Decode to resolve the
// result against known modules.
func Parse(s string) (Descriptor, error) {
	if base, arity, ok, err := unboundForm(s); err != nil {
		return Descriptor{}, err
	} else if ok {
		module, name, err := splitBaseName(base, s)
		if err != nil {
			return Descriptor{}, err
		}
		return Generic(module, name, arity), nil
	}

	nodes, err := parseTree(s)
	if err != nil {
		return Descriptor{}, err
	}
	return nodes.build(0, s)
}

// Codec decodes descriptor strings against a module cache.
// A Codec is safe for concurrent use.
type Codec struct {
	modules *ModuleCache
}

// NewCodec returns a codec resolving names through modules.
func NewCodec(modules *ModuleCache) *Codec {
	return &Codec{modules: modules}
}

// Encode renders d. It is the package-level Encode, exposed on the codec so
// a *Codec can serve as a naming strategy on its own.
func (c *Codec) Encode(d Descriptor) (string, error) {
	return Encode(d)
}

// Decode parses s and resolves every node by module, name and arity,
// binding children to their parents bottom-up.
func (c *Codec) Decode(s string) (Descriptor, error) {
	if base, arity, ok, err := unboundForm(s); err != nil {
		return Descriptor{}, err
	} else if ok {
		module, name, err := splitBaseName(base, s)
		if err != nil {
			return Descriptor{}, err
		}
		return c.modules.Resolve(module, name, arity)
	}

	nodes, err := parseTree(s)
	if err != nil {
		return Descriptor{}, err
	}
	return c.collapse(nodes, 0, s)
}

func (c *Codec) collapse(nodes tree, idx int, input string) (Descriptor, error) {
	n := nodes[idx]
	module, name, err := splitBaseName(n.name, input)
	if err != nil {
		return Descriptor{}, err
	}
	def, err := c.modules.Resolve(module, name, len(n.children))
	if err != nil {
		return Descriptor{}, err
	}
	if len(n.children) == 0 {
		return def, nil
	}
	args := make([]Descriptor, len(n.children))
	for i, child := range n.children {
		if args[i], err = c.collapse(nodes, child, input); err != nil {
			return Descriptor{}, err
		}
	}
	return def.Bind(args...)
}

// unboundForm recognizes "{base}<>" (arity 1) and "{base}<|...|>"
// (arity = pipes + 1). ok is false when s is not an unbound form.
func unboundForm(s string) (base string, arity int, ok bool, err error) {
	switch {
	case strings.HasSuffix(s, "<>"):
		base = s[:len(s)-2]
		arity = 1
	case strings.HasSuffix(s, "|>"):
		open := strings.IndexByte(s, openArgs)
		if open < 0 {
			return "", 0, false, keyerr.New(keyerr.MalformedDescriptor, s, "'>' with no matching '<'")
		}
		body := s[open+1 : len(s)-1]
		if strings.Trim(body, string(argSeparator)) != "" {
			return "", 0, false, keyerr.New(keyerr.MalformedDescriptor, s,
				"unbound argument list must contain only '|'")
		}
		base = s[:open]
		arity = len(body) + 1
	default:
		return "", 0, false, nil
	}
	if strings.ContainsAny(base, reservedChars) {
		return "", 0, false, keyerr.New(keyerr.MalformedDescriptor, s,
			"unbound generic cannot appear as a type argument")
	}
	return base, arity, true, nil
}

// splitBaseName splits "{name}, {module}".
func splitBaseName(base, input string) (module, name string, err error) {
	i := strings.Index(base, nameSeparator)
	if i <= 0 || i+len(nameSeparator) >= len(base) {
		return "", "", keyerr.New(keyerr.MalformedDescriptor, input,
			"base name %q is not of the form \"name, module\"", base)
	}
	return base[i+len(nameSeparator):], base[:i], nil
}

// node is one entry of the parse arena. Parent and children are indexes
// into the arena rather than pointers.
type node struct {
	name     string
	named    bool
	parent   int
	children []int
}

type tree []node

// parseTree scans s left to right with a current node and parent links.
// '<' finalizes the current name and opens a child, '|' closes the current
// argument and opens a sibling, '>' closes the current node and returns to
// its parent. Node 0 is the root.
func parseTree(s string) (tree, error) {
	if s == "" {
		return nil, keyerr.New(keyerr.MalformedDescriptor, s, "empty descriptor")
	}
	nodes := tree{{parent: -1}}
	cur, start := 0, 0

	finish := func(i int) error {
		if nodes[cur].named {
			return nil
		}
		nodes[cur].name = s[start:i]
		nodes[cur].named = true
		if nodes[cur].name == "" {
			return keyerr.New(keyerr.MalformedDescriptor, s, "empty type name at offset %d", i)
		}
		return nil
	}
	push := func(parent int) int {
		nodes = append(nodes, node{parent: parent})
		child := len(nodes) - 1
		nodes[parent].children = append(nodes[parent].children, child)
		return child
	}

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case openArgs:
			if nodes[cur].named {
				return nil, keyerr.New(keyerr.MalformedDescriptor, s, "unexpected '<' at offset %d", i)
			}
			if err := finish(i); err != nil {
				return nil, err
			}
			cur = push(cur)
			start = i + 1
		case argSeparator:
			parent := nodes[cur].parent
			if parent < 0 {
				return nil, keyerr.New(keyerr.MalformedDescriptor, s, "'|' outside of an argument list at offset %d", i)
			}
			if err := finish(i); err != nil {
				return nil, err
			}
			cur = push(parent)
			start = i + 1
		case closeArgs:
			parent := nodes[cur].parent
			if parent < 0 {
				return nil, keyerr.New(keyerr.MalformedDescriptor, s, "'>' with no matching '<' at offset %d", i)
			}
			if err := finish(i); err != nil {
				return nil, err
			}
			cur = parent
			start = i + 1
		default:
			if nodes[cur].named {
				return nil, keyerr.New(keyerr.MalformedDescriptor, s, "unexpected text after '>' at offset %d", i)
			}
		}
	}
	if cur != 0 {
		return nil, keyerr.New(keyerr.MalformedDescriptor, s, "unclosed '<'")
	}
	if err := finish(len(s)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// build converts the subtree at idx to a descriptor without resolution.
func (t tree) build(idx int, input string) (Descriptor, error) {
	n := t[idx]
	module, name, err := splitBaseName(n.name, input)
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Module: module, Name: name, Arity: len(n.children)}
	for _, child := range n.children {
		arg, err := t.build(child, input)
		if err != nil {
			return Descriptor{}, err
		}
		d.Args = append(d.Args, arg)
	}
	return d, nil
}
