package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/loader"
)

func TestRunWithGolden_Bookshop(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/bookshop_prices.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Errors(t *testing.T) {
	result := NewResult("broken")
	result.Batches = append(result.Batches,
		BatchOutcome{Name: "good", Result: &loader.BatchResult{ID: "broken-0001", DimensionsCreated: 1, Facts: 2}},
		BatchOutcome{Name: "bad", Error: "integrity error: unresolved"},
	)
	result.Queries = append(result.Queries, QueryOutcome{Name: "q", Error: "not found: planet"})

	data, err := Snapshot(result)
	require.NoError(t, err)

	want := `# scenario broken

## batch good
id: broken-0001
created: 1
reused: 0
facts: 2
relationships: 0

## batch bad
error: integrity error: unresolved

## query q
error: not found: planet
`
	assert.Equal(t, want, string(data))
}
