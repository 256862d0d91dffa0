package harness

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relcat/internal/report"
)

// Snapshot renders a result as stable text: one section per batch with its
// counts, then one section per query with its rows as TSV.
func Snapshot(result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# scenario %s\n", result.Scenario)

	for _, b := range result.Batches {
		fmt.Fprintf(&buf, "\n## batch %s\n", b.Name)
		if b.Result == nil {
			fmt.Fprintf(&buf, "error: %s\n", b.Error)
			continue
		}
		r := b.Result
		fmt.Fprintf(&buf, "id: %s\n", r.ID)
		fmt.Fprintf(&buf, "created: %d\nreused: %d\nfacts: %d\nrelationships: %d\n",
			r.DimensionsCreated, r.DimensionsReused, r.Facts, r.Relationships)
	}

	for _, q := range result.Queries {
		fmt.Fprintf(&buf, "\n## query %s\n", q.Name)
		if q.Result == nil {
			fmt.Fprintf(&buf, "error: %s\n", q.Error)
			continue
		}
		if err := report.Write(&buf, q.Result, report.TSV); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
