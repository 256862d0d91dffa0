package catalog

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/go-openapi/inflect"
)

// Kind classifies a table.
type Kind string

const (
	KindDimension    Kind = "dimension"
	KindFact         Kind = "fact"
	KindRelationship Kind = "relationship"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeText ColumnType = "text"
	TypeInt  ColumnType = "int"
	TypeReal ColumnType = "real"
	TypeTime ColumnType = "time"
)

// SQLType returns the SQLite column type. Times persist as RFC 3339 text.
func (t ColumnType) SQLType() string {
	switch t {
	case TypeInt:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Numeric reports whether the type holds numbers.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeReal
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeText, TypeInt, TypeReal, TypeTime:
		return true
	}
	return false
}

// IDColumn is the implicit primary key of every table.
const IDColumn = "id"

// Column declares a data column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Signed   bool // Numeric measure allowed to go negative
}

// NonNegative reports whether values must be >= 0.
func (c Column) NonNegative() bool {
	return c.Type.Numeric() && !c.Signed
}

// Link declares a foreign key column referencing another table's id.
type Link struct {
	Column   string
	Target   string // Logical name of the referenced table
	Nullable bool
}

// Span names the start/end time columns of a relationship.
// End is nullable: an open span has no end yet.
type Span struct {
	Start string
	End   string
}

// Table declares one dimension, fact or relationship table.
type Table struct {
	Name    string // Logical name, e.g. "category"
	SQLName string // Physical name; defaults to the plural of Name
	Kind    Kind
	Key     string // Natural key column (dimensions)
	Label   string // Display column (facts, optional)
	Columns []Column
	Links   []Link
	Span    *Span
	Unique  bool // Relationship links are unique as a tuple
}

// Attribute describes any addressable attribute of a table:
// the id, a column, or a link column.
type Attribute struct {
	Name   string
	Type   ColumnType
	Link   *Link
	Column *Column
}

// Column returns the data column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Link returns the link declared on the given column.
func (t *Table) Link(column string) (Link, bool) {
	for _, l := range t.Links {
		if l.Column == column {
			return l, true
		}
	}
	return Link{}, false
}

// LinksTo returns the links of t that reference target.
func (t *Table) LinksTo(target string) []Link {
	var out []Link
	for _, l := range t.Links {
		if l.Target == target {
			out = append(out, l)
		}
	}
	return out
}

// Attribute resolves an attribute name to its declaration.
func (t *Table) Attribute(name string) (Attribute, bool) {
	if name == IDColumn {
		return Attribute{Name: IDColumn, Type: TypeInt}, true
	}
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return Attribute{Name: name, Type: t.Columns[i].Type, Column: &t.Columns[i]}, true
		}
	}
	for i := range t.Links {
		if t.Links[i].Column == name {
			return Attribute{Name: name, Type: TypeInt, Link: &t.Links[i]}, true
		}
	}
	return Attribute{}, false
}

// Display returns the column that names a row in joined output:
// the natural key for dimensions, the label for facts, or "".
func (t *Table) Display() string {
	switch t.Kind {
	case KindDimension:
		return t.Key
	case KindFact:
		return t.Label
	default:
		return ""
	}
}

// Required returns the non-null columns and links other than the natural
// key. A dimension with none can be created from its key alone.
func (t *Table) Required() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Name != t.Key && !c.Nullable {
			out = append(out, c.Name)
		}
	}
	for _, l := range t.Links {
		if !l.Nullable {
			out = append(out, l.Column)
		}
	}
	return out
}

// Catalog is a validated, ordered set of table declarations.
type Catalog struct {
	Name   string
	Tables []Table
	index  map[string]int
}

// New validates the declarations and returns a Catalog.
// Missing SQL names default to the plural of the logical name, and a
// dimension's key column is added as non-null text when not declared.
func New(name string, tables ...Table) (*Catalog, error) {
	c := &Catalog{Name: name, Tables: slices.Clone(tables)}
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.SQLName == "" {
			t.SQLName = inflect.Pluralize(t.Name)
		}
		t.Columns = slices.Clone(t.Columns)
		t.Links = slices.Clone(t.Links)
		if t.Kind == KindDimension && t.Key != "" {
			if _, ok := t.Column(t.Key); !ok {
				t.Columns = append([]Column{{Name: t.Key, Type: TypeText}}, t.Columns...)
			}
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics on error.
// Use only for declarations known to be valid (builtins, tests).
func MustNew(name string, tables ...Table) *Catalog {
	c, err := New(name, tables...)
	if err != nil {
		panic(err)
	}
	return c
}

// Table returns the table with the given logical or SQL name.
func (c *Catalog) Table(name string) (*Table, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.Tables[i], true
}

// Lookup is like Table but returns a NotFoundError for unknown names.
func (c *Catalog) Lookup(name string) (*Table, error) {
	t, ok := c.Table(name)
	if !ok {
		return nil, &NotFoundError{Entity: name}
	}
	return t, nil
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validate checks every declaration and builds the name index.
func (c *Catalog) validate() error {
	if !identRe.MatchString(c.Name) {
		return &SchemaError{Message: fmt.Sprintf("invalid catalog name %q", c.Name)}
	}
	if len(c.Tables) == 0 {
		return &SchemaError{Message: fmt.Sprintf("catalog %q declares no tables", c.Name)}
	}

	c.index = make(map[string]int, 2*len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if err := c.validateTable(t); err != nil {
			return err
		}
		for _, n := range []string{t.Name, t.SQLName} {
			if j, dup := c.index[n]; dup && j != i {
				return &SchemaError{Table: t.Name, Message: fmt.Sprintf("name %q already declared", n)}
			}
			c.index[n] = i
		}
	}
	return nil
}

// validateTable checks one table against the tables declared before it.
func (c *Catalog) validateTable(t *Table) error {
	fail := func(column, format string, args ...any) error {
		return &SchemaError{Table: t.Name, Column: column, Message: fmt.Sprintf(format, args...)}
	}

	if !identRe.MatchString(t.Name) {
		return fail("", "invalid table name")
	}
	if !identRe.MatchString(t.SQLName) {
		return fail("", "invalid SQL table name %q", t.SQLName)
	}

	seen := map[string]bool{IDColumn: true}
	for _, col := range t.Columns {
		if !identRe.MatchString(col.Name) {
			return fail(col.Name, "invalid column name")
		}
		if seen[col.Name] {
			return fail(col.Name, "duplicate column")
		}
		if !col.Type.Valid() {
			return fail(col.Name, "unknown type %q", col.Type)
		}
		seen[col.Name] = true
	}
	for _, l := range t.Links {
		if !identRe.MatchString(l.Column) {
			return fail(l.Column, "invalid link column name")
		}
		if seen[l.Column] {
			return fail(l.Column, "duplicate column")
		}
		seen[l.Column] = true

		target, ok := c.Table(l.Target)
		if !ok {
			return fail(l.Column, "link target %q must be declared before %q", l.Target, t.Name)
		}
		if target.Kind == KindRelationship {
			return fail(l.Column, "link target %q is a relationship", l.Target)
		}
	}

	switch t.Kind {
	case KindDimension:
		if t.Key == "" {
			return fail("", "dimension requires a natural key")
		}
		key, _ := t.Column(t.Key)
		if key.Type != TypeText || key.Nullable {
			return fail(t.Key, "natural key must be non-null text")
		}
		if len(t.Links) > 0 {
			return fail("", "dimension cannot declare links")
		}
	case KindFact:
		if t.Label != "" {
			label, ok := t.Column(t.Label)
			if !ok || label.Type != TypeText {
				return fail(t.Label, "label must be a text column")
			}
		}
	case KindRelationship:
		if len(t.Links) < 2 {
			return fail("", "relationship requires at least two links")
		}
		if t.Span != nil {
			start, ok := t.Column(t.Span.Start)
			if !ok || start.Type != TypeTime || start.Nullable {
				return fail(t.Span.Start, "span start must be a non-null time column")
			}
			end, ok := t.Column(t.Span.End)
			if !ok || end.Type != TypeTime || !end.Nullable {
				return fail(t.Span.End, "span end must be a nullable time column")
			}
		}
	default:
		return fail("", "unknown kind %q", t.Kind)
	}

	if t.Kind != KindRelationship && (t.Span != nil || t.Unique) {
		return fail("", "span and unique apply to relationships only")
	}
	if t.Kind != KindDimension && t.Key != "" {
		return fail("", "natural key applies to dimensions only")
	}
	return nil
}
