package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/typekey/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML, JSON or CUE config file; empty for defaults

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the typekey CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "typekey",
		Short: "typekey - composite keys and type descriptors",
		Long: `Encode, decode and store composite keys.

A composite key is an ordered list of (type, value) parts. typekey renders
type descriptors, serializes keys under the configured naming and wire
encoding, and stores documents under them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (.yaml, .json or .cue)")

	// Add subcommands
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))

	return cmd
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// loadConfig reads --config, or returns the defaults when it is unset.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config == "" {
		return config.Default(), nil
	}
	return config.Load(o.Config)
}

// environment loads the config and builds its environment, reporting
// failures through f.
func (o *RootOptions) environment(f *OutputFormatter) (*config.Config, *config.Env, error) {
	cfg, err := o.loadConfig()
	if err == nil {
		var env *config.Env
		if env, err = cfg.Build(); err == nil {
			f.VerboseLog("naming=%s encoding=%s documents=%s types=%d", cfg.Naming, cfg.Encoding, cfg.Documents, len(cfg.Types))
			return cfg, env, nil
		}
	}
	_ = f.Error(ErrCodeConfig, err.Error(), nil)
	return nil, nil, WrapExitError(ExitCommandError, ErrCodeConfig, err)
}

// log returns the logger installed by the root command.
func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
