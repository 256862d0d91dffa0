package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/loader"
	"github.com/roach88/relcat/internal/query"
)

// AssertionError is returned when an expectation fails.
// It includes enough context to debug the failure.
type AssertionError struct {
	Subject  string // "batch 0" or "query top_books"
	Field    string // Expectation that failed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s: %s mismatch\n", e.Subject, e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// matchesErrorKind reports whether err belongs to the named category.
func matchesErrorKind(kind string, err error) bool {
	switch kind {
	case ErrorValidation:
		return catalog.IsValidationError(err)
	case ErrorIntegrity:
		return catalog.IsIntegrityError(err)
	case ErrorSchema:
		return catalog.IsSchemaError(err)
	case ErrorNotFound:
		return catalog.IsNotFound(err)
	case ErrorAny:
		return err != nil
	}
	return false
}

// checkError compares an operation's error with the expected category.
// An empty category means the operation must succeed.
func checkError(subject, kind, message string, err error) []error {
	if kind == "" && message == "" {
		if err != nil {
			return []error{&AssertionError{Subject: subject, Field: "error", Expected: "success", Actual: err.Error()}}
		}
		return nil
	}

	if err == nil {
		return []error{&AssertionError{Subject: subject, Field: "error", Expected: expectedError(kind, message), Actual: "success"}}
	}
	var errs []error
	if kind != "" && !matchesErrorKind(kind, err) {
		errs = append(errs, &AssertionError{Subject: subject, Field: "error", Expected: kind + " error", Actual: err.Error()})
	}
	if message != "" && !strings.Contains(err.Error(), message) {
		errs = append(errs, &AssertionError{Subject: subject, Field: "error message", Expected: fmt.Sprintf("contains %q", message), Actual: err.Error()})
	}
	return errs
}

func expectedError(kind, message string) string {
	switch {
	case kind != "" && message != "":
		return fmt.Sprintf("%s error containing %q", kind, message)
	case kind != "":
		return kind + " error"
	default:
		return fmt.Sprintf("error containing %q", message)
	}
}

// checkBatch evaluates a batch expectation. A nil expectation requires the
// batch to commit.
func checkBatch(subject string, expect *BatchExpect, res loader.BatchResult, err error) []error {
	if expect == nil {
		expect = &BatchExpect{}
	}
	if errs := checkError(subject, expect.Error, expect.Message, err); len(errs) > 0 || err != nil {
		return errs
	}

	var errs []error
	count := func(field string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, &AssertionError{Subject: subject, Field: field, Expected: fmt.Sprint(*want), Actual: fmt.Sprint(got)})
		}
	}
	count("created", expect.Created, res.DimensionsCreated)
	count("reused", expect.Reused, res.DimensionsReused)
	count("facts", expect.Facts, res.Facts)
	count("relationships", expect.Relationships, res.Relationships)
	return errs
}

// checkQuery evaluates a query expectation. A nil expectation requires the
// query to succeed.
func checkQuery(subject string, expect *QueryExpect, res *query.Result, err error) []error {
	if expect == nil {
		expect = &QueryExpect{}
	}
	if errs := checkError(subject, expect.Error, "", err); len(errs) > 0 || err != nil {
		return errs
	}

	var errs []error
	if expect.Count != nil && *expect.Count != res.Len() {
		errs = append(errs, &AssertionError{Subject: subject, Field: "count", Expected: fmt.Sprint(*expect.Count), Actual: fmt.Sprint(res.Len())})
	}

	if expect.Columns != nil {
		got := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			got[i] = c.Name
		}
		if !slices.Equal(expect.Columns, got) {
			errs = append(errs, &AssertionError{Subject: subject, Field: "columns", Expected: fmt.Sprint(expect.Columns), Actual: fmt.Sprint(got)})
		}
	}

	if expect.Rows != nil {
		errs = append(errs, checkRows(subject, expect.Rows, res)...)
	}

	if expect.First != nil {
		if res.Len() == 0 {
			errs = append(errs, &AssertionError{Subject: subject, Field: "first", Expected: fmt.Sprint(expect.First), Actual: "no rows"})
		} else {
			errs = append(errs, checkSubset(subject+" row 0", expect.First, res, 0)...)
		}
	}
	return errs
}

func checkRows(subject string, want [][]any, res *query.Result) []error {
	if len(want) != res.Len() {
		return []error{&AssertionError{
			Subject:  subject,
			Field:    "rows",
			Expected: fmt.Sprintf("%d rows", len(want)),
			Actual:   fmt.Sprintf("%d rows: %s", res.Len(), formatRows(res)),
		}}
	}

	var errs []error
	for i, row := range want {
		if len(row) != len(res.Columns) {
			errs = append(errs, &AssertionError{
				Subject:  fmt.Sprintf("%s row %d", subject, i),
				Field:    "width",
				Expected: fmt.Sprintf("%d values", len(row)),
				Actual:   fmt.Sprintf("%d columns", len(res.Columns)),
			})
			continue
		}
		for j, v := range row {
			if !matchValue(v, res.Rows[i][j]) {
				errs = append(errs, &AssertionError{
					Subject:  fmt.Sprintf("%s row %d", subject, i),
					Field:    res.Columns[j].Name,
					Expected: formatExpected(v),
					Actual:   formatActual(res.Rows[i][j]),
				})
			}
		}
	}
	return errs
}

// checkSubset compares only the columns named in want.
func checkSubset(subject string, want map[string]any, res *query.Result, row int) []error {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []error
	for _, k := range keys {
		if res.Index(k) < 0 {
			errs = append(errs, &AssertionError{Subject: subject, Field: k, Expected: formatExpected(want[k]), Actual: "no such column"})
			continue
		}
		got := res.Value(row, k)
		if !matchValue(want[k], got) {
			errs = append(errs, &AssertionError{Subject: subject, Field: k, Expected: formatExpected(want[k]), Actual: formatActual(got)})
		}
	}
	return errs
}

// matchValue compares a decoded YAML value with a result value.
// Numbers compare numerically, times compare as instants, and anything
// else compares by its text form.
func matchValue(want any, got ir.Value) bool {
	exp, err := ir.FromAny(want)
	if err != nil {
		return false
	}
	if ir.IsNull(exp) || ir.IsNull(got) {
		return ir.IsNull(exp) && ir.IsNull(got)
	}
	if _, isTime := got.(ir.Time); isTime {
		if s, ok := exp.(ir.String); ok {
			t, err := ir.ParseTime(string(s))
			return err == nil && ir.Equal(t, got)
		}
	}
	if ir.Equal(exp, got) {
		return true
	}
	return ir.Format(exp) == ir.Format(got)
}

func formatExpected(v any) string {
	exp, err := ir.FromAny(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return formatActual(exp)
}

func formatActual(v ir.Value) string {
	if ir.IsNull(v) {
		return "null"
	}
	return fmt.Sprintf("%s (%s)", ir.Format(v), ir.KindOf(v))
}

func formatRows(res *query.Result) string {
	rows := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = ir.Format(v)
		}
		rows[i] = "[" + strings.Join(cells, ", ") + "]"
	}
	return strings.Join(rows, " ")
}
