package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/harness"
	"github.com/roach88/relcat/internal/loader"
)

// LoadedBatch is the outcome of one batch of a load.
type LoadedBatch struct {
	Name   string              `json:"name"`
	Result *loader.BatchResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// LoadResult holds the outcome of the load command.
type LoadResult struct {
	Batches   []LoadedBatch `json:"batches"`
	Committed int           `json:"committed"`
	Total     int           `json:"total"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <fixture.yaml>",
		Short: "Load batches of rows from a YAML fixture",
		Long: `Load every batch of a YAML fixture into the database. Each batch is
atomic: it commits entirely or not at all. Loading stops at the first
rejected batch; batches before it stay committed.

Exit codes:
  0 - All batches committed
  1 - A batch was rejected (invalid row, duplicate key, dangling link)
  2 - Command error (fixture not found, schema conflict, etc.)

Examples:
  relcat load --db library.db issues.yaml
  relcat load --db shop.db --catalog bookshop --format json prices.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fixture, err := harness.LoadFixture(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load fixture", err)
	}

	sess, err := opts.open(cmd.Context(), cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	l := loader.New(sess.store, sess.catalog, loader.WithLogger(sess.logger))

	result := LoadResult{Total: len(fixture.Batches)}
	var loadErr error
	for i, spec := range fixture.Batches {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("batch %d", i)
		}

		res, err := l.LoadBatch(cmd.Context(), spec.Batch())
		if err != nil {
			result.Batches = append(result.Batches, LoadedBatch{Name: name, Error: err.Error()})
			loadErr = fmt.Errorf("%s: %w", name, err)
			break
		}
		result.Batches = append(result.Batches, LoadedBatch{Name: name, Result: &res})
		result.Committed++
	}

	if formatter.Structured() {
		if loadErr != nil {
			_ = formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrorCode(loadErr), Message: loadErr.Error()},
			})
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputLoadText(formatter.Writer, result)
	}

	if loadErr != nil {
		code := ExitCommandError
		if catalog.IsValidationError(loadErr) || catalog.IsIntegrityError(loadErr) {
			code = ExitFailure
		}
		return WrapExitError(code, "batch rejected", loadErr)
	}
	return nil
}

func outputLoadText(w io.Writer, result LoadResult) {
	for _, b := range result.Batches {
		if b.Result == nil {
			fmt.Fprintf(w, "✗ %s\n", b.Name)
			fmt.Fprintf(w, "  %s\n", b.Error)
			continue
		}
		r := b.Result
		fmt.Fprintf(w, "✓ %s (%s)\n", b.Name, r.ID)
		fmt.Fprintf(w, "  dimensions: %d created, %d reused\n", r.DimensionsCreated, r.DimensionsReused)
		fmt.Fprintf(w, "  facts: %d, relationships: %d\n", r.Facts, r.Relationships)
	}
	fmt.Fprintf(w, "\n%d/%d batches committed\n", result.Committed, result.Total)
}
