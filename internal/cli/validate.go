package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mockk/mockk-sub002/internal/scenario"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema and decode them.

Does not create doubles or record anything; use run for that.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := findScenarioFiles(paths, "")
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true, Files: []FileValidation{}}
	for _, file := range files {
		fv := FileValidation{File: file, Valid: true}
		if _, err := scenario.Load(file); err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			result.Valid = false
		}
		formatter.VerboseLog("Validated %s", file)
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		status := "ok"
		if !result.Valid {
			status = "failed"
		}
		if err := formatter.JSON(status, result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, fv := range result.Files {
			fmt.Fprintf(w, "%s %s\n", formatter.Status(fv.Valid), fv.File)
			if !fv.Valid {
				fmt.Fprintln(w, indentLines(fv.Error, "  "))
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
