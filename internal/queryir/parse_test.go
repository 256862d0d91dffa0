package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/ir"
)

func TestParseItem(t *testing.T) {
	tests := []struct {
		in   string
		want Item
	}{
		{"name", Item{Column: "name"}},
		{"left.name", Item{Side: SideLeft, Column: "name"}},
		{" right.title ", Item{Side: SideRight, Column: "title"}},
		{"count(*)", Item{Side: SideRight, Func: Count, Column: "*"}},
		{"COUNT(*) as books", Item{Side: SideRight, Func: Count, Column: "*", As: "books"}},
		{"sum(price)", Item{Side: SideRight, Func: Sum, Column: "price"}},
		{"max(left.year) AS newest", Item{Side: SideLeft, Func: Max, Column: "year", As: "newest"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItem(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseItemErrors(t *testing.T) {
	for _, in := range []string{"median(x)", "sum(*)", "middle.x", "", "*"} {
		_, err := ParseItem(in)
		assert.Error(t, err, in)
	}
}

func TestParseItems(t *testing.T) {
	items, err := ParseItems("name, count(*) as books, avg(price)")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "books", items[1].Name())
	assert.Equal(t, "avg_price", items[2].Name())
}

func TestParseCompare(t *testing.T) {
	tests := []struct {
		in   string
		want Compare
	}{
		{">= 2", Compare{Op: Ge, Value: ir.Int(2)}},
		{">2", Compare{Op: Gt, Value: ir.Int(2)}},
		{"<=10.5", Compare{Op: Le, Value: ir.Float(10.5)}},
		{"!= 0", Compare{Op: Ne, Value: ir.Int(0)}},
		{"=60", Compare{Op: Eq, Value: ir.Int(60)}},
	}
	for _, tt := range tests {
		got, err := ParseCompare(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseCompare("about 3")
	assert.Error(t, err)
	_, err = ParseCompare("> many")
	assert.Error(t, err)
}

func TestParseHaving(t *testing.T) {
	p, err := ParseHaving()
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseHaving(">= 2")
	require.NoError(t, err)
	assert.Equal(t, Compare{Op: Ge, Value: ir.Int(2)}, p)

	p, err = ParseHaving(">= 2", "< 10")
	require.NoError(t, err)
	and, ok := p.(And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
}
