package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mockk/mockk-sub002/internal/journal"
)

// JournalOptions holds flags for the journal commands.
type JournalOptions struct {
	*RootOptions
	Run    string // run ID, latest run when empty
	MockID string
	Method string
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded call journals",
		Long: `Inspect the SQLite journals written by run --journal.

The journal path is the first argument, or journal in the config file
(CALLCHECK_JOURNAL).`,
	}

	runs := &cobra.Command{
		Use:           "runs [journal.db]",
		Short:         "List journaled runs",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalRuns(opts, args, cmd)
		},
	}

	show := &cobra.Command{
		Use:   "show [journal.db]",
		Short: "Show the calls of a run",
		Long: `Show the calls of one run in call order.

Examples:
  callcheck journal show calls.db
  callcheck journal show calls.db --run 0190b7c2-... --method Get`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(opts, args, cmd)
		},
	}
	show.Flags().StringVar(&opts.Run, "run", "", "run ID (default: latest run)")
	show.Flags().StringVar(&opts.MockID, "mock", "", "only calls on this mock ID")
	show.Flags().StringVar(&opts.Method, "method", "", "only calls of this method")

	cmd.AddCommand(runs, show)
	return cmd
}

// openJournal opens an existing journal named by args or the config.
func (o *JournalOptions) openJournal(args []string) (*journal.Journal, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.JournalPath
	}
	if path == "" {
		return nil, commandError(ErrCodeInvalid, "no journal given and none configured", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, commandError(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, commandError(ErrCodeJournal, "failed to open journal", err)
	}
	return j, nil
}

func runJournalRuns(opts *JournalOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	j, err := opts.openJournal(args)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(cmd.Context())
	if err != nil {
		return commandError(ErrCodeJournal, "failed to read runs", err)
	}

	if opts.Format == "json" {
		return formatter.JSON("ok", runs)
	}
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-24s %d call(s)\n", r.ID, r.Label, r.Calls)
	}
	return nil
}

func runJournalShow(opts *JournalOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	j, err := opts.openJournal(args)
	if err != nil {
		return err
	}
	defer j.Close()

	runID := opts.Run
	if runID == "" {
		runID, err = j.LatestRun(cmd.Context())
		if errors.Is(err, sql.ErrNoRows) {
			return commandError(ErrCodeJournal, "journal has no runs", nil)
		}
		if err != nil {
			return commandError(ErrCodeJournal, "failed to find latest run", err)
		}
		formatter.VerboseLog("Showing latest run %s", runID)
	}

	entries, err := j.Calls(cmd.Context(), runID, journal.Filter{MockID: opts.MockID, Method: opts.Method})
	if err != nil {
		return commandError(ErrCodeJournal, "failed to read calls", err)
	}

	if opts.Format == "json" {
		return formatter.JSON("ok", entries)
	}
	w := cmd.OutOrStdout()
	for i, e := range entries {
		fmt.Fprintf(w, "%d) %s\n", i+1, e)
	}
	return nil
}
