package loader

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

// preparedDimension is a dimension row after validation and coercion.
type preparedDimension struct {
	ref   catalog.RowRef
	table *catalog.Table
	key   string
	attrs map[string]ir.Value
}

// preparedLink is one link of a fact or relationship row.
type preparedLink struct {
	link   catalog.Link
	target *catalog.Table
	ref    Ref
}

// preparedRow is a fact or relationship row after validation and coercion.
type preparedRow struct {
	ref    catalog.RowRef
	table  *catalog.Table
	handle string
	values map[string]ir.Value
	links  []preparedLink
}

// preparedBatch holds a validated batch. Nothing has touched the store yet.
type preparedBatch struct {
	dimensions    []preparedDimension
	facts         []preparedRow
	relationships []preparedRow
}

// NormalizeKey trims surrounding space and applies Unicode NFC so that
// equivalent spellings of a natural key resolve to the same row.
func NormalizeKey(key string) string {
	return norm.NFC.String(strings.TrimSpace(key))
}

// prepare validates every row of b against the catalog and coerces values
// to their column types. It performs no I/O.
func (l *Loader) prepare(b Batch) (*preparedBatch, error) {
	p := &preparedBatch{
		dimensions:    make([]preparedDimension, 0, len(b.Dimensions)),
		facts:         make([]preparedRow, 0, len(b.Facts)),
		relationships: make([]preparedRow, 0, len(b.Relationships)),
	}

	for i, row := range b.Dimensions {
		ref := catalog.RowRef{Kind: catalog.KindDimension, Table: row.Table, Index: i, Key: row.Key}
		d, err := l.prepareDimension(ref, row.Table, row.Key, row.Attrs)
		if err != nil {
			return nil, err
		}
		p.dimensions = append(p.dimensions, d)
	}

	// Handles declared so far, by fact table
	handles := make(map[string]string)
	for i, row := range b.Facts {
		ref := catalog.RowRef{Kind: catalog.KindFact, Table: row.Table, Index: i, Key: row.Handle}
		r, err := l.prepareRow(ref, catalog.KindFact, row.Values, row.Links, handles)
		if err != nil {
			return nil, err
		}
		if row.Handle != "" {
			if _, dup := handles[row.Handle]; dup {
				return nil, &catalog.ValidationError{Row: ref, Message: fmt.Sprintf("handle %q already used in this batch", row.Handle)}
			}
			handles[row.Handle] = r.table.Name
			r.handle = row.Handle
		}
		p.facts = append(p.facts, r)
	}

	for i, row := range b.Relationships {
		ref := catalog.RowRef{Kind: catalog.KindRelationship, Table: row.Table, Index: i}
		r, err := l.prepareRow(ref, catalog.KindRelationship, row.Values, row.Links, handles)
		if err != nil {
			return nil, err
		}
		p.relationships = append(p.relationships, r)
	}
	return p, nil
}

// lookupTable resolves a table name and checks its kind.
func (l *Loader) lookupTable(ref catalog.RowRef, name string, kind catalog.Kind) (*catalog.Table, error) {
	t, ok := l.catalog.Table(name)
	if !ok {
		return nil, &catalog.ValidationError{Row: ref, Message: fmt.Sprintf("unknown table %q", name)}
	}
	if t.Kind != kind {
		return nil, &catalog.ValidationError{Row: ref, Message: fmt.Sprintf("%s is a %s, not a %s", name, t.Kind, kind)}
	}
	return t, nil
}

func (l *Loader) prepareDimension(ref catalog.RowRef, table, key string, attrs map[string]any) (preparedDimension, error) {
	t, err := l.lookupTable(ref, table, catalog.KindDimension)
	if err != nil {
		return preparedDimension{}, err
	}

	key = NormalizeKey(key)
	ref.Key = key
	if key == "" {
		return preparedDimension{}, &catalog.ValidationError{Row: ref, Field: t.Key, Message: "natural key is empty"}
	}

	values := make(map[string]ir.Value, len(attrs))
	for name, raw := range attrs {
		if name == t.Key {
			return preparedDimension{}, &catalog.ValidationError{Row: ref, Field: name, Message: "natural key is given by the row key, not as an attribute"}
		}
		v, err := coerceColumn(ref, t, name, raw)
		if err != nil {
			return preparedDimension{}, err
		}
		values[name] = v
	}
	return preparedDimension{ref: ref, table: t, key: key, attrs: values}, nil
}

func (l *Loader) prepareRow(ref catalog.RowRef, kind catalog.Kind, raw map[string]any, links map[string]Ref, handles map[string]string) (preparedRow, error) {
	t, err := l.lookupTable(ref, ref.Table, kind)
	if err != nil {
		return preparedRow{}, err
	}

	values := make(map[string]ir.Value, len(raw))
	for name, rv := range raw {
		if _, isLink := t.Link(name); isLink {
			return preparedRow{}, &catalog.ValidationError{Row: ref, Field: name, Message: "link given as a value; use links"}
		}
		v, err := coerceColumn(ref, t, name, rv)
		if err != nil {
			return preparedRow{}, err
		}
		values[name] = v
	}
	for _, col := range t.Columns {
		if col.Nullable {
			continue
		}
		if v, ok := values[col.Name]; !ok || ir.IsNull(v) {
			return preparedRow{}, &catalog.ValidationError{Row: ref, Field: col.Name, Message: "required column missing"}
		}
	}

	if t.Span != nil {
		start, _ := values[t.Span.Start].(ir.Time)
		if end, ok := values[t.Span.End].(ir.Time); ok && end.Std().Before(start.Std()) {
			return preparedRow{}, &catalog.ValidationError{
				Row:     ref,
				Field:   t.Span.End,
				Message: fmt.Sprintf("%s %s is before %s %s", t.Span.End, end, t.Span.Start, start),
			}
		}
	}

	for name := range links {
		if _, ok := t.Link(name); !ok {
			return preparedRow{}, &catalog.ValidationError{Row: ref, Field: name, Message: "unknown link"}
		}
	}

	prepared := make([]preparedLink, 0, len(t.Links))
	for _, link := range t.Links {
		r, ok := links[link.Column]
		if !ok || r.IsZero() {
			if !link.Nullable {
				return preparedRow{}, &catalog.ValidationError{Row: ref, Field: link.Column, Message: "required link missing"}
			}
			continue
		}
		target, _ := l.catalog.Table(link.Target)
		r, err := checkRef(ref, link, target, r, handles)
		if err != nil {
			return preparedRow{}, err
		}
		prepared = append(prepared, preparedLink{link: link, target: target, ref: r})
	}

	return preparedRow{ref: ref, table: t, values: values, links: prepared}, nil
}

// checkRef validates a link reference against its target table.
func checkRef(row catalog.RowRef, link catalog.Link, target *catalog.Table, r Ref, handles map[string]string) (Ref, error) {
	fail := func(format string, args ...any) (Ref, error) {
		return Ref{}, &catalog.ValidationError{Row: row, Field: link.Column, Message: fmt.Sprintf(format, args...)}
	}

	switch r.kind {
	case refKey:
		if target.Kind != catalog.KindDimension {
			return fail("%s is a %s; reference it by @handle or #id", target.Name, target.Kind)
		}
		key := NormalizeKey(r.value)
		if key == "" {
			return fail("natural key is empty")
		}
		return Key(key), nil
	case refHandle:
		table, ok := handles[r.value]
		if !ok {
			return fail("handle %q is not declared by an earlier fact", r.value)
		}
		if table != target.Name {
			return fail("handle %q names a %s row, want %s", r.value, table, target.Name)
		}
		return r, nil
	case refID:
		if r.id <= 0 {
			return fail("invalid id %d", r.id)
		}
		return r, nil
	}
	return fail("empty reference")
}

// coerceColumn converts one inbound value and checks nullability and sign.
func coerceColumn(ref catalog.RowRef, t *catalog.Table, name string, raw any) (ir.Value, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, &catalog.ValidationError{Row: ref, Field: name, Message: fmt.Sprintf("unknown column of %s", t.Name)}
	}

	v, err := catalog.Coerce(col.Type, raw)
	if err != nil {
		return nil, &catalog.ValidationError{Row: ref, Field: name, Message: err.Error()}
	}
	if ir.IsNull(v) && !col.Nullable {
		return nil, &catalog.ValidationError{Row: ref, Field: name, Message: "must not be null"}
	}
	if col.NonNegative() {
		if n, ok := ir.Number(v); ok && n < 0 {
			return nil, &catalog.ValidationError{Row: ref, Field: name, Message: fmt.Sprintf("must be non-negative, got %s", ir.Format(v))}
		}
	}
	return v, nil
}

// canonical renders the prepared batch as an ir.Object for hashing.
func (p *preparedBatch) canonical() ir.Object {
	dims := make(ir.Array, 0, len(p.dimensions))
	for _, d := range p.dimensions {
		dims = append(dims, ir.Object{
			"table": ir.String(d.table.Name),
			"key":   ir.String(d.key),
			"attrs": ir.Object(d.attrs),
		})
	}
	rows := func(in []preparedRow) ir.Array {
		out := make(ir.Array, 0, len(in))
		for _, r := range in {
			links := make(ir.Object, len(r.links))
			for _, pl := range r.links {
				links[pl.link.Column] = ir.String(pl.ref.String())
			}
			out = append(out, ir.Object{
				"table":  ir.String(r.table.Name),
				"handle": ir.String(r.handle),
				"values": ir.Object(r.values),
				"links":  links,
			})
		}
		return out
	}
	return ir.Object{
		"dimensions":    dims,
		"facts":         rows(p.facts),
		"relationships": rows(p.relationships),
	}
}
