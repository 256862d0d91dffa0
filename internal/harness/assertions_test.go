package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/loader"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/querysql"
)

func intp(n int) *int { return &n }

func sampleResult(t *testing.T) *query.Result {
	t.Helper()
	issued, err := ir.ParseTime("2024-01-10")
	require.NoError(t, err)
	return &query.Result{
		Columns: []querysql.Column{
			{Name: "title", Type: catalog.TypeText},
			{Name: "issues", Type: catalog.TypeInt},
			{Name: "avg_price", Type: catalog.TypeReal},
			{Name: "issued", Type: catalog.TypeTime},
		},
		Rows: []query.Row{
			{ir.String("Hamlet"), ir.Int(2), ir.Float(9.5), issued},
			{ir.String("Lear"), ir.Int(0), ir.Null{}, ir.Null{}},
		},
	}
}

func TestMatchValue(t *testing.T) {
	issued, err := ir.ParseTime("2024-01-10")
	require.NoError(t, err)

	tests := []struct {
		name string
		want any
		got  ir.Value
		ok   bool
	}{
		{"string", "Hamlet", ir.String("Hamlet"), true},
		{"string mismatch", "Hamlet", ir.String("Lear"), false},
		{"int", 2, ir.Int(2), true},
		{"int against float", 60, ir.Float(60), true},
		{"float", 9.5, ir.Float(9.5), true},
		{"number against text", 7, ir.String("7"), true},
		{"null", nil, ir.Null{}, true},
		{"null against value", nil, ir.Int(0), false},
		{"value against null", 0, ir.Null{}, false},
		{"date against time", "2024-01-10", issued, true},
		{"timestamp against time", "2024-01-10T00:00:00Z", issued, true},
		{"wrong date", "2024-01-11", issued, false},
		{"garbage against time", "soon", issued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, matchValue(tt.want, tt.got))
		})
	}
}

func TestCheckQuery_AllExpectationsHold(t *testing.T) {
	res := sampleResult(t)
	expect := &QueryExpect{
		Count:   intp(2),
		Columns: []string{"title", "issues", "avg_price", "issued"},
		Rows: [][]any{
			{"Hamlet", 2, 9.5, "2024-01-10"},
			{"Lear", 0, nil, nil},
		},
		First: map[string]any{"issues": 2},
	}

	assert.Empty(t, checkQuery("query q", expect, res, nil))
}

func TestCheckQuery_Mismatches(t *testing.T) {
	res := sampleResult(t)

	t.Run("count", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{Count: intp(3)}, res, nil)
		require.Len(t, errs, 1)
		var ae *AssertionError
		require.True(t, errors.As(errs[0], &ae))
		assert.Equal(t, "count", ae.Field)
		assert.Equal(t, "3", ae.Expected)
		assert.Equal(t, "2", ae.Actual)
	})

	t.Run("columns", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{Columns: []string{"title"}}, res, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "columns mismatch")
	})

	t.Run("row count", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{Rows: [][]any{{"Hamlet", 2, 9.5, nil}}}, res, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "Expected: 1 rows")
		assert.Contains(t, errs[0].Error(), "[Lear, 0, , ]")
	})

	t.Run("cell", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{Rows: [][]any{
			{"Hamlet", 3, 9.5, "2024-01-10"},
			{"Lear", 0, nil, nil},
		}}, res, nil)
		require.Len(t, errs, 1)
		var ae *AssertionError
		require.True(t, errors.As(errs[0], &ae))
		assert.Equal(t, "query q row 0", ae.Subject)
		assert.Equal(t, "issues", ae.Field)
		assert.Equal(t, "3 (int)", ae.Expected)
		assert.Equal(t, "2 (int)", ae.Actual)
	})

	t.Run("width", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{Rows: [][]any{{"Hamlet"}, {"Lear"}}}, res, nil)
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0].Error(), "width mismatch")
	})

	t.Run("first unknown column", func(t *testing.T) {
		errs := checkQuery("query q", &QueryExpect{First: map[string]any{"rating": 5}}, res, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no such column")
	})

	t.Run("first on empty result", func(t *testing.T) {
		empty := &query.Result{Columns: res.Columns, Rows: []query.Row{}}
		errs := checkQuery("query q", &QueryExpect{First: map[string]any{"title": "Hamlet"}}, empty, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no rows")
	})
}

func TestCheckQuery_Errors(t *testing.T) {
	notFound := &catalog.NotFoundError{Entity: "planet"}

	assert.Empty(t, checkQuery("query q", &QueryExpect{Error: ErrorNotFound}, nil, notFound))
	assert.Empty(t, checkQuery("query q", &QueryExpect{Error: ErrorAny}, nil, notFound))

	errs := checkQuery("query q", &QueryExpect{Error: ErrorValidation}, nil, notFound)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Expected: validation error")

	errs = checkQuery("query q", nil, nil, notFound)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Expected: success")
}

func TestCheckBatch(t *testing.T) {
	res := loader.BatchResult{DimensionsCreated: 2, DimensionsReused: 1, Facts: 3, Relationships: 4}

	assert.Empty(t, checkBatch("batch 0", nil, res, nil))
	assert.Empty(t, checkBatch("batch 0", &BatchExpect{
		Created: intp(2), Reused: intp(1), Facts: intp(3), Relationships: intp(4),
	}, res, nil))

	errs := checkBatch("batch 0", &BatchExpect{Created: intp(1), Relationships: intp(0)}, res, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "created mismatch")
	assert.Contains(t, errs[1].Error(), "relationships mismatch")

	integrity := &catalog.IntegrityError{Field: "book_id", Message: "unresolved: no book with id 99"}
	assert.Empty(t, checkBatch("batch 1", &BatchExpect{Error: ErrorIntegrity, Message: "id 99"}, loader.BatchResult{}, integrity))

	errs = checkBatch("batch 1", &BatchExpect{Error: ErrorIntegrity, Message: "id 98"}, loader.BatchResult{}, integrity)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `contains "id 98"`)

	// Counts are not checked once the batch failed
	errs = checkBatch("batch 1", &BatchExpect{Error: ErrorIntegrity, Created: intp(9)}, loader.BatchResult{}, integrity)
	assert.Empty(t, errs)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Subject: "query top", Field: "count", Expected: "3", Actual: "2"}
	assert.Equal(t, "query top: count mismatch\n  Expected: 3\n  Actual: 2", err.Error())
}
