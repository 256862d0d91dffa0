package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Summary contains the results of running a set of scenario files.
type Summary struct {
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`

	// Results holds one entry per scenario that ran, in path order.
	Results []*Result `json:"results,omitempty"`
}

// Failure represents a scenario that could not be loaded or run, or whose
// expectations did not hold.
type Failure struct {
	Path     string `json:"path"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error"`
}

// Discover returns the scenario files (*.yaml, *.yml) under dir in
// lexical order. A path naming a single file is returned as is.
func Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Golden files and other fixtures live under testdata
			if path != dir && (d.Name() == "testdata" || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunAll loads and runs the scenario files concurrently. Every scenario
// owns its in-memory store, so runs share nothing.
//
// The summary lists results in path order regardless of completion order.
// The returned error is reserved for context cancellation.
func RunAll(ctx context.Context, paths []string, opts ...Option) (*Summary, error) {
	type outcome struct {
		result *Result
		err    error
	}
	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scenario, err := LoadScenario(path)
			if err != nil {
				outcomes[i].err = fmt.Errorf("failed to load scenario: %w", err)
				return nil
			}
			result, err := Run(gctx, scenario, opts...)
			if err != nil {
				outcomes[i].err = fmt.Errorf("scenario execution failed: %w", err)
				return nil
			}
			outcomes[i].result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(paths)}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Path: paths[i], Error: o.err.Error()})
		case !o.result.Pass:
			summary.Failed++
			summary.Results = append(summary.Results, o.result)
			summary.Failures = append(summary.Failures, Failure{
				Path:     paths[i],
				Scenario: o.result.Scenario,
				Error:    fmt.Sprintf("scenario expectations failed:\n%s", strings.Join(o.result.Errors, "\n")),
			})
		default:
			summary.Passed++
			summary.Results = append(summary.Results, o.result)
		}
	}
	return summary, nil
}
