package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typekey/internal/typedesc"
)

// TypeResult describes one type descriptor.
type TypeResult struct {
	Descriptor typedesc.Descriptor `json:"descriptor"`
	Canonical  string              `json:"canonical"`
	Qualified  string              `json:"qualified"`
	Resolved   bool                `json:"resolved"`
}

// Text renders the descriptor as an indented tree.
func (r TypeResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Canonical)
	writeTree(&b, r.Descriptor, 1)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, d typedesc.Descriptor, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case d.IsUnbound():
		fmt.Fprintf(b, "%s%s (module %s, unbound, arity %d)\n", indent, d.Name, d.Module, d.Arity)
	case d.IsBound():
		fmt.Fprintf(b, "%s%s (module %s, arity %d)\n", indent, d.Name, d.Module, d.Arity)
	default:
		fmt.Fprintf(b, "%s%s (module %s)\n", indent, d.Name, d.Module)
	}
	for _, a := range d.Args {
		writeTree(b, a, depth+1)
	}
}

// DefinitionsResult lists the types a configuration defines.
type DefinitionsResult struct {
	Types []TypeResult `json:"types"`
}

func (r DefinitionsResult) Text() string {
	lines := make([]string, len(r.Types))
	for i, t := range r.Types {
		lines[i] = t.Canonical
	}
	return strings.Join(lines, "\n")
}

// NewTypeCommand creates the type command group.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Parse and resolve type descriptors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parse <descriptor>",
		Short: "Parse a descriptor without resolving it",
		Long: `Parse a type descriptor and print its tree. Names are not
resolved, so any well-formed descriptor is accepted.

Example:
  typekey type parse 'Pair, example.com/app<int, builtin|string, builtin>'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypeParse(rootOpts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "check <descriptor>",
		Short:         "Resolve a descriptor against the configured types",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypeCheck(rootOpts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List the configured types",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypeList(rootOpts, cmd)
		},
	})

	return cmd
}

func runTypeParse(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	d, err := typedesc.Parse(input)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	res, err := describe(d, false)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	return formatter.Success(res)
}

func runTypeCheck(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	_, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	d, err := env.Codec.Decode(input)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	res, err := describe(d, true)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	return formatter.Success(res)
}

func runTypeList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	_, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	res := DefinitionsResult{Types: []TypeResult{}}
	for _, d := range env.Registry.Definitions() {
		if d.Module == typedesc.BuiltinModule {
			continue
		}
		t, err := describe(d, true)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
		}
		res.Types = append(res.Types, t)
	}
	return formatter.Success(res)
}

func describe(d typedesc.Descriptor, resolved bool) (TypeResult, error) {
	canonical, err := typedesc.Encode(d)
	if err != nil {
		return TypeResult{}, err
	}
	return TypeResult{
		Descriptor: d,
		Canonical:  canonical,
		Qualified:  typedesc.QualifiedName(d),
		Resolved:   resolved,
	}, nil
}
