package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typekey/internal/config"
	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/typedesc"
)

// PartResult is one (type, value) part of a key.
type PartResult struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// KeyResult describes a serialized key.
type KeyResult struct {
	Wire    string       `json:"wire"`
	Display string       `json:"display"`
	Parts   []PartResult `json:"parts"`
}

func (r KeyResult) Text() string { return r.Wire }

// KeyCommandOptions holds flags for the key commands.
type KeyCommandOptions struct {
	*RootOptions
	ToNaming   string
	ToEncoding string
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyCommandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Serialize and deserialize composite keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <descriptor> <value> [<descriptor> <value>...]",
		Short: "Serialize a key from (type, value) pairs",
		Long: `Serialize a key under the configured naming and encoding. Parts
are given outermost first; the last part is the key's subject.

Example:
  typekey key encode 'User, example.com/app' 42 'Order, example.com/app' 7`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected (descriptor, value) pairs, got %d argument(s)", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyEncode(opts, args, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "new <descriptor> [<descriptor>...]",
		Short:         "Serialize a key with a generated UUIDv7 value per part",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyNew(opts, keys.UUIDv7Generator{}, args, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "decode <wire>",
		Short:         "Deserialize a wire string into its parts",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyDecode(opts, args[0], cmd)
		},
	})

	convert := &cobra.Command{
		Use:   "convert <wire>",
		Short: "Re-serialize a wire string under other settings",
		Long: `Deserialize a wire string under the configured settings and
serialize it again with the naming and encoding given by flags. Unset
flags keep the configured value.

Example:
  typekey key convert --to-encoding plain 'VXNlciwgZXhhbXBsZS5jb20vYXBw:NDI='`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyConvert(opts, args[0], cmd)
		},
	}
	convert.Flags().StringVar(&opts.ToNaming, "to-naming", "", "target naming (descriptor|qualified|lookup)")
	convert.Flags().StringVar(&opts.ToEncoding, "to-encoding", "", "target encoding (segmented|plain)")
	cmd.AddCommand(convert)

	return cmd
}

func runKeyEncode(opts *KeyCommandOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	_, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	parts := make([]keys.Part, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		d, err := env.Codec.Decode(args[i])
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
		}
		parts = append(parts, keys.Part{Type: d, Value: args[i+1]})
	}
	k, err := keys.FromParts(parts...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	return outputKey(formatter, env.Serializer, k)
}

func runKeyNew(opts *KeyCommandOptions, gen keys.Generator, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	_, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	var k keys.Key
	for _, arg := range args {
		d, err := env.Codec.Decode(arg)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
		}
		if k.IsZero() {
			k = keys.Generate(gen, d)
		} else {
			k = k.ExtendGenerated(gen, d)
		}
	}
	return outputKey(formatter, env.Serializer, k)
}

func runKeyDecode(opts *KeyCommandOptions, wire string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	_, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	k, err := env.Serializer.Deserialize(wire)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	res, err := keyResult(wire, k)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	return formatter.Success(res)
}

func runKeyConvert(opts *KeyCommandOptions, wire string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, env, err := opts.environment(formatter)
	if err != nil {
		return err
	}

	target := *cfg
	if opts.ToNaming != "" {
		target.Naming = opts.ToNaming
	}
	if opts.ToEncoding != "" {
		target.Encoding = opts.ToEncoding
	}
	targetEnv, err := buildTarget(&target)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, err)
	}

	out, err := keycodec.Convert(wire, env.Serializer.Settings(), targetEnv.Serializer.Settings())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	formatter.VerboseLog("converted to naming=%s encoding=%s", target.Naming, target.Encoding)
	k, err := targetEnv.Serializer.Deserialize(out)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	res, err := keyResult(out, k)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	return formatter.Success(res)
}

func buildTarget(cfg *config.Config) (*config.Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid conversion target"), err)
	}
	return cfg.Build()
}

func outputKey(formatter *OutputFormatter, ser *keycodec.Serializer, k keys.Key) error {
	wire, err := ser.Serialize(k)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidArgs, err)
	}
	res, err := keyResult(wire, k)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	return formatter.Success(res)
}

func keyResult(wire string, k keys.Key) (KeyResult, error) {
	res := KeyResult{Wire: wire, Display: k.String(), Parts: make([]PartResult, 0, k.Len())}
	for _, p := range k.Parts() {
		t, err := typedesc.Encode(p.Type)
		if err != nil {
			return KeyResult{}, err
		}
		res.Parts = append(res.Parts, PartResult{Type: t, Value: p.Value})
	}
	return res, nil
}
