package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mockk/mockk-sub002/internal/journal"
	"github.com/mockk/mockk-sub002/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string // journal database path, overrides the config
	Filter  string // scenario name filter (glob pattern)
	Jobs    int    // scenarios run concurrently
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	File   string           `json:"file"`
	Name   string           `json:"name"`
	Passed bool             `json:"passed"`
	Error  string           `json:"error,omitempty"`
	Report *scenario.Report `json:"report,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>...",
		Short: "Run call scenarios",
		Long: `Run scenario files through the engine and report every step and check.

Directories are searched recursively for .yaml and .yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad config, etc.)

Examples:
  callcheck run ./scenarios
  callcheck run ./scenarios --filter "cart-*"
  callcheck run checkout.yaml --journal calls.db
  callcheck run ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record calls into this SQLite journal")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of scenarios run concurrently")

	return cmd
}

func runScenarios(ctx context.Context, opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := findScenarioFiles(paths, opts.Filter)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return formatter.JSON("ok", RunResult{Scenarios: []ScenarioOutcome{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Journal != "" {
		cfg.JournalPath = opts.Journal
	}

	runnerOpts := []scenario.Option{
		scenario.WithBaseConfig(cfg),
		scenario.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return commandError(ErrCodeJournal, "failed to open journal", err)
		}
		defer j.Close()
		runnerOpts = append(runnerOpts, scenario.WithJournal(j))
		formatter.VerboseLog("Journaling calls to %s", cfg.JournalPath)
	}
	runner := scenario.NewRunner(runnerOpts...)

	formatter.VerboseLog("Running %d scenario file(s)", len(files))
	outcomes := make([]ScenarioOutcome, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			outcomes[i] = runScenarioFile(ctx, runner, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	result := RunResult{Scenarios: outcomes, Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		status := "ok"
		if result.Failed > 0 {
			status = "failed"
		}
		if err := formatter.JSON(status, result); err != nil {
			return err
		}
	} else {
		outputRunText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

func runScenarioFile(ctx context.Context, runner *scenario.Runner, file string) ScenarioOutcome {
	out := ScenarioOutcome{File: file, Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))}

	sc, err := scenario.Load(file)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Name = sc.Name

	report, err := runner.Run(ctx, sc)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Report = report
	out.Passed = report.Passed
	return out
}

func outputRunText(f *OutputFormatter, result RunResult) {
	w := f.Writer
	for _, o := range result.Scenarios {
		fmt.Fprintf(w, "%s %s\n", f.Status(o.Passed), o.Name)
		if o.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", o.Error)
			continue
		}
		if f.Verbose {
			fmt.Fprint(w, indentLines(o.Report.Text(), "  "))
		}
		for _, failure := range o.Report.Failures() {
			fmt.Fprintln(w, indentLines(failure, "  "))
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// findScenarioFiles expands paths into scenario files. Directories are
// walked for .yaml and .yml files; the filter applies to file names
// without extension.
func findScenarioFiles(paths []string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, commandError(ErrCodeInvalid, "invalid filter pattern", err)
		}
	}

	var files []string
	keep := func(path string) {
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return
			}
		}
		files = append(files, path)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, commandError(ErrCodeNotFound, fmt.Sprintf("scenario path not found: %s", p), nil)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				keep(path)
			}
			return nil
		})
		if err != nil {
			return nil, commandError(ErrCodeNotFound, "failed to walk scenario directory", err)
		}
	}
	return files, nil
}

func indentLines(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" || l == "\n" {
			b.WriteString(l)
			continue
		}
		b.WriteString(prefix + l)
	}
	return b.String()
}
