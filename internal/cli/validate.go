package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirtycheck/internal/compiler"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File     string                  `json:"file"`
	Name     string                  `json:"name,omitempty"`
	Valid    bool                    `json:"valid"`
	Code     string                  `json:"code,omitempty"`
	Line     int                     `json:"line,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Filter string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenarios without running them",
		Long: `Validate YAML and CUE scenarios without running them.

Checks syntax, the scenario schema, node and watch references, and
reports watches whose effects can feed back into each other. Feedback
loops are warnings: a runaway loop may be exactly what a scenario tests.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := FindScenarioFiles(paths, opts.Filter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
		} else {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		_ = formatter.Error(ErrCodeNoFiles, "no scenario files found", nil)
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := validateFile(file)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		if !result.Valid {
			if err := formatter.Failure(result, ErrCodeInvalid, "validation failed"); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "validation failed")
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, fv := range result.Files {
		if !fv.Valid {
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			fmt.Fprintf(w, "  [%s] %s\n", fv.Code, fv.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Name)
		for _, warn := range fv.Warnings {
			fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	fmt.Fprintln(w, "All scenarios valid")
	return nil
}

// validateFile loads one file and analyzes its watches for feedback loops.
func validateFile(file string) FileValidation {
	fv := FileValidation{File: file}

	sc, err := LoadScenario(file)
	if err != nil {
		fv.Code = ErrCodeGeneric
		fv.Error = err.Error()
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			fv.Code = loadErr.Code
			fv.Error = loadErr.Message
			if loadErr.Pos.IsValid() {
				fv.Line = loadErr.Pos.Line()
			}
		}
		return fv
	}

	fv.Valid = true
	fv.Name = sc.Name
	fv.Warnings = compiler.AnalyzeCycles(sc)
	return fv
}
