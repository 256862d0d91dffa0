package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat warnings as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`
	Catalogs []string              `json:"catalogs,omitempty"`
	Errors   []compiler.Diagnostic `json:"errors,omitempty"`
	Warnings []compiler.Diagnostic `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <catalog-dir>",
		Short: "Validate catalog declarations without touching a database",
		Long: `Compile the CUE catalog declarations in a directory and report errors
and advisory warnings. No database is opened.

Exit codes:
  0 - All catalogs valid
  1 - Declaration errors (or warnings with --strict)
  2 - Command error (directory not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("catalog directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("catalog directory not found: %s", dir))
	}

	cats, err := compiler.LoadDir(dir)
	if err != nil {
		return outputValidationErrors(formatter, ValidationResult{
			Errors: []compiler.Diagnostic{compiler.DiagnosticFor(err)},
		})
	}

	result := ValidationResult{Valid: true}
	for _, c := range cats {
		formatter.VerboseLog("Validating catalog: %s (%d tables)", c.Name, len(c.Tables))
		result.Catalogs = append(result.Catalogs, c.Name)
		for _, d := range compiler.Lint(c) {
			if d.IsWarning() && !opts.Strict {
				result.Warnings = append(result.Warnings, d)
				continue
			}
			result.Errors = append(result.Errors, d)
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Structured() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All catalogs valid (%d)\n", len(result.Catalogs))
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s\n", w.Error())
	}
	return nil
}

// outputValidationErrors outputs validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = false
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Structured() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return exitErr
}
