// Package cli implements the callcheck command line: running scenario
// files through the engine, validating them and inspecting call journals.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mockk/mockk-sub002/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a TOML config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the callcheck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with args and returns the process exit code.
// Command errors are reported on stderr, or as a JSON error response on
// stdout when --format json is in effect. Failed scenarios and
// validations have already been reported by their command.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := GetExitCode(err)
	switch {
	case err == nil:
	case opts.Format == "json" && code == ExitCommandError:
		f := &OutputFormatter{Format: "json", Writer: stdout}
		if werr := f.Error(GetErrCode(err), err.Error(), nil); werr != nil {
			fmt.Fprintln(stderr, "callcheck:", err)
		}
	default:
		fmt.Fprintln(stderr, "callcheck:", err)
	}
	return code
}

func newRootCommand(opts *RootOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "callcheck",
		Short: "callcheck - record, stub and verify calls on test doubles",
		Long: `Run call scenarios against dynamic test doubles.

A scenario declares types and doubles, stubs calls with matchers, runs a
script of calls and verifies the call history in unordered, ordered,
sequence or all mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				err := fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				return commandError(ErrCodeInvalid, "bad flags", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "TOML config file (CALLCHECK_* variables override it)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

// loadConfig loads the engine configuration named by --config.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, commandError(ErrCodeInvalid, "failed to load config", err)
	}
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
