package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/store"
)

// RecordResult is a stored record.
type RecordResult struct {
	Key         string   `json:"key"`
	Value       any      `json:"value,omitempty"`
	ForeignKeys []string `json:"foreign_keys"`
}

func (r RecordResult) Text() string {
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(b)
}

// DeleteResult reports whether a record was removed.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

func (r DeleteResult) Text() string {
	if r.Deleted {
		return "deleted " + r.Key
	}
	return "no record under " + r.Key
}

// RefsResult lists the records referencing a key.
type RefsResult struct {
	Key        string   `json:"key"`
	References []string `json:"references"`
}

func (r RefsResult) Text() string { return strings.Join(r.References, "\n") }

// StoreCommandOptions holds flags for the store commands.
type StoreCommandOptions struct {
	*RootOptions
	Refs []string
}

// NewStoreCommand creates the store command group. Keys are given as
// wire strings under the configured settings.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreCommandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store and query documents under composite keys",
		Long: `Store and query documents in the configured backend.

Keys are wire strings produced by 'typekey key encode' under the same
config. The memory driver does not outlive a single command.`,
	}

	put := &cobra.Command{
		Use:   "put <wire> <json>",
		Short: "Store a JSON value under a key",
		Long: `Store a JSON value under a key, replacing any existing record.
Each --ref names a key the record refers to; 'store refs' on that key
lists this record.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStorePut(opts, args[0], args[1], cmd)
		},
	}
	put.Flags().StringArrayVar(&opts.Refs, "ref", nil, "wire key of a referenced record (repeatable)")
	cmd.AddCommand(put)

	cmd.AddCommand(&cobra.Command{
		Use:           "get <wire>",
		Short:         "Print the value stored under a key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreGet(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <wire>",
		Short:         "Delete the record under a key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreDelete(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "refs <wire>",
		Short:         "List the records that reference a key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreRefs(opts, args[0], cmd)
		},
	})

	return cmd
}

// withStore loads the environment, parses wire and opens the configured
// store, then runs fn. The store is closed afterwards.
func withStore(opts *StoreCommandOptions, cmd *cobra.Command, wire string,
	fn func(ctx context.Context, f *OutputFormatter, s *store.Store, ser *keycodec.Serializer, k keys.Key) error,
) error {
	formatter := opts.formatter(cmd)
	cfg, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}
	k, err := env.Serializer.Deserialize(wire)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	s, err := cfg.OpenStore(env, opts.log())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err)
	}
	defer s.Close()

	return fn(cmd.Context(), formatter, s, env.Serializer, k)
}

func runStorePut(opts *StoreCommandOptions, wire, value string, cmd *cobra.Command) error {
	return withStore(opts, cmd, wire, func(ctx context.Context, f *OutputFormatter, s *store.Store, ser *keycodec.Serializer, k keys.Key) error {
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return f.Fail(ExitFailure, ErrCodeInvalidArgs, fmt.Errorf("invalid JSON value: %w", err))
		}
		refs := make([]keys.Key, 0, len(opts.Refs))
		for _, r := range opts.Refs {
			rk, err := ser.Deserialize(r)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeInvalidArgs, fmt.Errorf("--ref %q: %w", r, err))
			}
			refs = append(refs, rk)
		}
		if err := s.Set(ctx, k, v, refs...); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, err)
		}
		return f.Success(RecordResult{Key: wire, Value: v, ForeignKeys: wires(ser, refs)})
	})
}

func runStoreGet(opts *StoreCommandOptions, wire string, cmd *cobra.Command) error {
	return withStore(opts, cmd, wire, func(ctx context.Context, f *OutputFormatter, s *store.Store, ser *keycodec.Serializer, k keys.Key) error {
		var v any
		if err := s.Get(ctx, k, &v); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, err)
		}
		fks, err := s.ForeignKeys(ctx, k)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, err)
		}
		return f.Success(RecordResult{Key: wire, Value: v, ForeignKeys: wires(ser, fks)})
	})
}

func runStoreDelete(opts *StoreCommandOptions, wire string, cmd *cobra.Command) error {
	return withStore(opts, cmd, wire, func(ctx context.Context, f *OutputFormatter, s *store.Store, _ *keycodec.Serializer, k keys.Key) error {
		found, err := s.Delete(ctx, k)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, err)
		}
		return f.Success(DeleteResult{Key: wire, Deleted: found})
	})
}

func runStoreRefs(opts *StoreCommandOptions, wire string, cmd *cobra.Command) error {
	return withStore(opts, cmd, wire, func(ctx context.Context, f *OutputFormatter, s *store.Store, ser *keycodec.Serializer, k keys.Key) error {
		refs, err := s.References(ctx, k)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, err)
		}
		return f.Success(RefsResult{Key: wire, References: wires(ser, refs)})
	})
}

// wires serializes ks. The keys were parsed or loaded with ser, so they
// serialize without error.
func wires(ser *keycodec.Serializer, ks []keys.Key) []string {
	out := make([]string, 0, len(ks))
	for _, k := range ks {
		if w, err := ser.Serialize(k); err == nil {
			out = append(out, w)
		}
	}
	return out
}
