package harness

import (
	"github.com/roach88/relcat/internal/loader"
	"github.com/roach88/relcat/internal/query"
)

// BatchOutcome is the recorded outcome of one load batch.
type BatchOutcome struct {
	Name   string              `json:"name"`
	Result *loader.BatchResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// QueryOutcome is the recorded outcome of one query.
type QueryOutcome struct {
	Name   string        `json:"name"`
	Result *query.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass indicates overall success.
	// True if every batch and query matched its expectations.
	Pass bool `json:"pass"`

	// Batches holds one outcome per batch, in load order.
	Batches []BatchOutcome `json:"batches"`

	// Queries holds one outcome per query, in scenario order.
	Queries []QueryOutcome `json:"queries"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Batches:  []BatchOutcome{},
		Queries:  []QueryOutcome{},
		Errors:   []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
