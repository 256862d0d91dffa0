package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/catalog"
)

func TestLintClean(t *testing.T) {
	c := catalog.MustNew("bookshop",
		catalog.Table{Name: "category", Kind: catalog.KindDimension, Key: "name"},
		catalog.Table{
			Name:    "book",
			Kind:    catalog.KindFact,
			Label:   "title",
			Columns: []catalog.Column{{Name: "title", Type: catalog.TypeText}},
			Links:   []catalog.Link{{Column: "category_id", Target: "category"}},
		},
	)

	assert.Empty(t, Lint(c))
}

func TestLintFindings(t *testing.T) {
	c := catalog.MustNew("restaurant",
		catalog.Table{Name: "dish", Kind: catalog.KindDimension, Key: "name",
			Columns: []catalog.Column{{Name: "price", Type: catalog.TypeReal}}},
		catalog.Table{Name: "waiter", Kind: catalog.KindDimension, Key: "name"},
		catalog.Table{Name: "order", Kind: catalog.KindFact},
		catalog.Table{
			Name:  "order_dish",
			Kind:  catalog.KindRelationship,
			Links: []catalog.Link{{Column: "order_id", Target: "order"}, {Column: "dish_id", Target: "dish"}},
		},
	)

	diags := Lint(c)
	codes := make([]string, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
		assert.True(t, d.IsWarning())
	}
	assert.Equal(t, []string{WarnEagerRequired, WarnUnreferenced, WarnNoLabel, WarnDuplicateLink}, codes)
	assert.Equal(t, "dimension.dish", diags[0].Field)
	assert.Equal(t, "dimension.waiter", diags[1].Field)
}

func TestDiagnosticFormat(t *testing.T) {
	d := Diagnostic{Field: "fact.star", Message: "fact has no label", Code: WarnNoLabel}
	assert.Equal(t, "[W201] fact.star: fact has no label", d.Error())

	d.Line = 7
	assert.Equal(t, "[W201] line 7: fact.star: fact has no label", d.Error())
}

func TestDiagnosticForPlainError(t *testing.T) {
	d := DiagnosticFor(errors.New("disk on fire"))
	assert.Equal(t, ErrUnknownDiagCode, d.Code)
	assert.False(t, d.IsWarning())
}

func TestDiagnosticForCodes(t *testing.T) {
	tests := []struct {
		message string
		code    string
	}{
		{"relationship requires at least two links", ErrTooFewLinks},
		{"span end must be a nullable time column", ErrSpanColumns},
		{"dimension requires a natural key", ErrMissingKey},
		{`unknown type "float" (want text, int, real or time)`, ErrUnknownType},
		{"label must be a text column", ErrDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			d := DiagnosticFor(&CompileError{Field: "x", Message: tt.message})
			require.Equal(t, tt.code, d.Code)
		})
	}
}
