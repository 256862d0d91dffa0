package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/ir"
)

func bookshopTables() []Table {
	return []Table{
		{
			Name:    "category",
			Kind:    KindDimension,
			Key:     "name",
			Columns: []Column{{Name: "url", Type: TypeText, Nullable: true}},
		},
		{
			Name:  "book",
			Kind:  KindFact,
			Label: "title",
			Columns: []Column{
				{Name: "title", Type: TypeText},
				{Name: "price", Type: TypeReal},
			},
			Links: []Link{{Column: "category_id", Target: "category"}},
		},
	}
}

func TestNew_DefaultsSQLNameAndKey(t *testing.T) {
	c, err := New("bookshop", bookshopTables()...)
	require.NoError(t, err)

	category, ok := c.Table("category")
	require.True(t, ok)
	assert.Equal(t, "categories", category.SQLName)
	assert.Equal(t, "name", category.Columns[0].Name, "key column is prepended")
	assert.Equal(t, TypeText, category.Columns[0].Type)

	byPhysical, ok := c.Table("books")
	require.True(t, ok)
	assert.Equal(t, "book", byPhysical.Name)
}

func TestNew_PluralizesCompoundNames(t *testing.T) {
	c := MustNew("t",
		Table{Name: "spectral_class", Kind: KindDimension, Key: "class"},
		Table{Name: "membership_status", Kind: KindDimension, Key: "status"},
		Table{Name: "dish", Kind: KindDimension, Key: "name"},
	)
	assert.Equal(t, "spectral_classes", c.Tables[0].SQLName)
	assert.Equal(t, "membership_statuses", c.Tables[1].SQLName)
	assert.Equal(t, "dishes", c.Tables[2].SQLName)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		tables  []Table
		message string
	}{
		{
			name:    "no tables",
			message: "declares no tables",
		},
		{
			name:    "dimension without key",
			tables:  []Table{{Name: "genre", Kind: KindDimension}},
			message: "natural key",
		},
		{
			name: "link to undeclared table",
			tables: []Table{{
				Name:  "book",
				Kind:  KindFact,
				Links: []Link{{Column: "genre_id", Target: "genre"}},
			}},
			message: "must be declared before",
		},
		{
			name: "relationship with one link",
			tables: []Table{
				{Name: "genre", Kind: KindDimension, Key: "name"},
				{Name: "tag", Kind: KindRelationship, Links: []Link{{Column: "genre_id", Target: "genre"}}},
			},
			message: "at least two links",
		},
		{
			name: "span end not nullable",
			tables: []Table{
				{Name: "a", Kind: KindDimension, Key: "k"},
				{Name: "b", Kind: KindDimension, Key: "k"},
				{
					Name: "ab",
					Kind: KindRelationship,
					Columns: []Column{
						{Name: "started", Type: TypeTime},
						{Name: "ended", Type: TypeTime},
					},
					Links: []Link{{Column: "a_id", Target: "a"}, {Column: "b_id", Target: "b"}},
					Span:  &Span{Start: "started", End: "ended"},
				},
			},
			message: "span end",
		},
		{
			name:    "bad identifier",
			tables:  []Table{{Name: "Genre", Kind: KindDimension, Key: "name"}},
			message: "invalid table name",
		},
		{
			name: "duplicate column",
			tables: []Table{{
				Name: "book", Kind: KindFact,
				Columns: []Column{{Name: "title", Type: TypeText}, {Name: "title", Type: TypeText}},
			}},
			message: "duplicate column",
		},
		{
			name:    "unknown type",
			tables:  []Table{{Name: "book", Kind: KindFact, Columns: []Column{{Name: "title", Type: "blob"}}}},
			message: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("broken", tt.tables...)
			require.Error(t, err)
			assert.True(t, IsSchemaError(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestTable_Attribute(t *testing.T) {
	c := MustNew("bookshop", bookshopTables()...)
	book, err := c.Lookup("book")
	require.NoError(t, err)

	id, ok := book.Attribute("id")
	require.True(t, ok)
	assert.Equal(t, TypeInt, id.Type)

	price, ok := book.Attribute("price")
	require.True(t, ok)
	assert.Equal(t, TypeReal, price.Type)
	assert.NotNil(t, price.Column)

	link, ok := book.Attribute("category_id")
	require.True(t, ok)
	require.NotNil(t, link.Link)
	assert.Equal(t, "category", link.Link.Target)

	_, ok = book.Attribute("isbn")
	assert.False(t, ok)

	assert.Equal(t, "title", book.Display())
	assert.Equal(t, []string{"title", "price", "category_id"}, book.Required())
}

func TestLookup_NotFound(t *testing.T) {
	c := MustNew("bookshop", bookshopTables()...)
	_, err := c.Lookup("author")
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "author", nf.Entity)
	assert.True(t, IsNotFound(err))
}

func TestErrorsMatchSentinels(t *testing.T) {
	row := RowRef{Kind: KindFact, Table: "book", Index: 2, Key: "b3"}
	wrapped := errors.Join(errors.New("context"), &IntegrityError{Row: row, Field: "category_id", Message: "unresolved"})

	assert.True(t, IsIntegrityError(wrapped))
	assert.False(t, IsValidationError(wrapped))
	assert.Contains(t, wrapped.Error(), "fact book[2] (b3): category_id: unresolved")

	verr := &ValidationError{Field: "n", Message: "must be positive"}
	assert.Equal(t, "validation: n: must be positive", verr.Error())
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		typ      ColumnType
		raw      any
		expected ir.Value
	}{
		{"text from string", TypeText, "Travel", ir.String("Travel")},
		{"text from int", TypeText, 1, ir.String("1")},
		{"int from int", TypeInt, 3, ir.Int(3)},
		{"int from integral float", TypeInt, 3.0, ir.Int(3)},
		{"int from string", TypeInt, " 12 ", ir.Int(12)},
		{"real from int", TypeReal, 10, ir.Float(10)},
		{"real from string", TypeReal, "4.37", ir.Float(4.37)},
		{"time from date", TypeTime, "2024-01-15", mustTime(t, "2024-01-15")},
		{"time value passes", TypeTime, mustTime(t, "2024-01-15"), mustTime(t, "2024-01-15")},
		{"real passes", TypeReal, 4.5, ir.Float(4.5)},
		{"null passes", TypeInt, nil, ir.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Coerce(tt.typ, tt.raw)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.expected, v), "got %#v", v)
			assert.True(t, Conforms(tt.typ, v))
		})
	}
}

func TestConforms(t *testing.T) {
	assert.True(t, Conforms(TypeText, ir.String("x")))
	assert.False(t, Conforms(TypeInt, ir.Float(2.5)))
	assert.False(t, Conforms(TypeText, ir.Int(1)))
	assert.False(t, Conforms(TypeTime, ir.String("2024-01-15")))
}

func TestCoerce_Rejects(t *testing.T) {
	_, err := Coerce(TypeInt, 2.5)
	require.Error(t, err)

	_, err = Coerce(TypeReal, "far")
	require.Error(t, err)

	_, err = Coerce(TypeTime, 17)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot use int as time")

	_, err = Coerce(TypeText, true)
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	v, err := Decode(TypeTime, []byte("2024-01-15T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T00:00:00Z", ir.Format(v))

	v, err = Decode(TypeReal, int64(60))
	require.NoError(t, err)
	assert.Equal(t, ir.Float(60), v)
}

func mustTime(t *testing.T, s string) ir.Time {
	t.Helper()
	v, err := ir.ParseTime(s)
	require.NoError(t, err)
	return v
}
