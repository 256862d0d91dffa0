package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario fixtures",
		Long: `Run YAML scenario files against fresh in-memory databases.

Each scenario names a catalog, loads its batches and runs its queries,
checking the expectations it declares. Scenarios run concurrently; the
--db and --catalog flags are ignored.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  relcat test ./scenarios
  relcat test ./scenarios --filter "library-*"
  relcat test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	paths, err := harness.Discover(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid filter", err)
	}

	if len(paths) == 0 {
		if formatter.Structured() {
			return formatter.Success(harness.Summary{})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}
	formatter.VerboseLog("Running %d scenario(s) from %s", len(paths), dir)

	summary, err := harness.RunAll(cmd.Context(), paths, harness.WithLogger(opts.logger(cmd)))
	if err != nil {
		return formatter.Fail(ExitCommandError, "scenario run interrupted", err)
	}

	if formatter.Structured() {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		outputTestText(formatter.Writer, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
	}
	return nil
}

// filterScenarios keeps the paths whose base name, without extension,
// matches the glob pattern. An empty pattern keeps everything.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}

	var kept []string
	for _, path := range paths {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if ok, _ := filepath.Match(pattern, name); ok {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

func outputTestText(w io.Writer, summary *harness.Summary) {
	for _, r := range summary.Results {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Scenario)
		}
	}
	for _, f := range summary.Failures {
		name := f.Scenario
		if name == "" {
			name = filepath.Base(f.Path)
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, line := range strings.Split(f.Error, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
