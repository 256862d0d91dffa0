// Package querysql compiles QueryIR to parameterized SQLite SQL against a
// catalog.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/queryir"
	"github.com/roach88/relcat/internal/store"
)

// Column is one output column of a compiled statement.
type Column struct {
	Name string             `json:"name"`
	Type catalog.ColumnType `json:"type"`
}

// Statement is a compiled query: SQL text, its bound parameters and the
// typed output columns in select order.
type Statement struct {
	SQL     string
	Params  []any
	Columns []Column
}

// Types returns the column types in select order.
func (s Statement) Types() []catalog.ColumnType {
	types := make([]catalog.ColumnType, len(s.Columns))
	for i, c := range s.Columns {
		types[i] = c.Type
	}
	return types
}

// Compiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: every statement has a total ORDER BY (ties broken by id or
// group key) so results are deterministic. A global group yields a single
// row and needs none.
// CRITICAL: all values are parameterized, never interpolated. Identifiers
// come from the catalog and are quoted.
type Compiler struct {
	catalog *catalog.Catalog
}

// NewCompiler creates a Compiler resolving names against c.
func NewCompiler(c *catalog.Catalog) *Compiler {
	return &Compiler{catalog: c}
}

// Compile converts a query to a Statement. Unknown entities or attributes
// return *catalog.NotFoundError; parameters that do not fit the catalog
// (a text measure for sum, a relationship without a span) return
// *catalog.ValidationError.
func (c *Compiler) Compile(q queryir.Query) (Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return Statement{}, err
	}

	switch query := q.(type) {
	case queryir.TopN:
		return c.compileTopN(query)
	case *queryir.TopN:
		return c.compileTopN(*query)
	case queryir.JoinProjection:
		return c.compileJoin(query)
	case *queryir.JoinProjection:
		return c.compileJoin(*query)
	case queryir.GroupAggregate:
		return c.compileGroup(query)
	case *queryir.GroupAggregate:
		return c.compileGroup(*query)
	case queryir.StaleFilter:
		return c.compileStale(query)
	case *queryir.StaleFilter:
		return c.compileStale(*query)
	default:
		return Statement{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func invalid(field, format string, args ...any) error {
	return &catalog.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// attribute resolves name on t or returns a NotFoundError.
func attribute(t *catalog.Table, name string) (catalog.Attribute, error) {
	a, ok := t.Attribute(name)
	if !ok {
		return catalog.Attribute{}, &catalog.NotFoundError{Entity: t.Name, Attribute: name}
	}
	return a, nil
}

// col renders alias."column".
func col(alias, name string) string {
	return alias + "." + store.Quote(name)
}

// labelJoin projects the display column of a link target. When the target
// has no display column the link id itself is projected.
type labelJoin struct {
	name  string // Output column name
	expr  string // Select expression
	typ   catalog.ColumnType
	join  string // LEFT JOIN clause, empty when no join is needed
	order string // Expression used when ordering by this label
}

// linkLabels builds one labelJoin per link of t (aliased as alias). Output
// names are the link column without its "_id" suffix, falling back to the
// link column when that collides with another attribute of t.
func (c *Compiler) linkLabels(t *catalog.Table, alias string) []labelJoin {
	out := make([]labelJoin, 0, len(t.Links))
	for i, l := range t.Links {
		out = append(out, c.linkLabel(t, alias, l, fmt.Sprintf("%s%d", alias, i+1)))
	}
	return out
}

func (c *Compiler) linkLabel(t *catalog.Table, alias string, l catalog.Link, targetAlias string) labelJoin {
	target, _ := c.catalog.Table(l.Target)
	display := target.Display()
	if display == "" {
		return labelJoin{name: l.Column, expr: col(alias, l.Column), typ: catalog.TypeInt, order: col(alias, l.Column)}
	}

	name := strings.TrimSuffix(l.Column, "_id")
	if _, clash := t.Attribute(name); clash || name == "" {
		name = l.Column + "_" + display
	}
	return labelJoin{
		name: name,
		expr: col(targetAlias, display),
		typ:  catalog.TypeText,
		join: fmt.Sprintf("LEFT JOIN %s %s ON %s = %s",
			store.Quote(target.SQLName), targetAlias, col(targetAlias, catalog.IDColumn), col(alias, l.Column)),
		order: col(targetAlias, display),
	}
}

// builder accumulates select items and their output columns.
type builder struct {
	selects []string
	columns []Column
}

func (b *builder) add(expr, name string, typ catalog.ColumnType) {
	b.selects = append(b.selects, fmt.Sprintf("%s AS %s", expr, store.Quote(name)))
	b.columns = append(b.columns, Column{Name: name, Type: typ})
}

func direction(o queryir.Order, def queryir.Order) string {
	if o == "" {
		o = def
	}
	if o == queryir.Asc {
		return "ASC"
	}
	return "DESC"
}

// compileTopN: entity rows with every column and linked labels, ranked by
// metric with id as tiebreaker.
func (c *Compiler) compileTopN(q queryir.TopN) (Statement, error) {
	t, err := c.catalog.Lookup(q.Entity)
	if err != nil {
		return Statement{}, err
	}
	metric, err := attribute(t, q.Metric)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add(col("t", catalog.IDColumn), catalog.IDColumn, catalog.TypeInt)
	for _, column := range t.Columns {
		b.add(col("t", column.Name), column.Name, column.Type)
	}
	var joins []string
	for _, lj := range c.linkLabels(t, "t") {
		b.add(lj.expr, lj.name, lj.typ)
		if lj.join != "" {
			joins = append(joins, lj.join)
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s t", strings.Join(b.selects, ", "), store.Quote(t.SQLName))
	for _, j := range joins {
		sql += " " + j
	}
	sql += fmt.Sprintf(" WHERE %s IS NOT NULL ORDER BY %s %s, %s ASC LIMIT ?",
		col("t", metric.Name), col("t", metric.Name), direction(q.Order, queryir.Desc), col("t", catalog.IDColumn))

	return Statement{SQL: sql, Params: []any{int64(q.N)}, Columns: b.columns}, nil
}

// joinCondition finds the link connecting left (alias l) and right
// (alias r) and returns the ON expression.
func (c *Compiler) joinCondition(left, right *catalog.Table, key string) (string, error) {
	rightToLeft := func(l catalog.Link) string {
		return fmt.Sprintf("%s = %s", col("r", l.Column), col("l", catalog.IDColumn))
	}
	leftToRight := func(l catalog.Link) string {
		return fmt.Sprintf("%s = %s", col("l", l.Column), col("r", catalog.IDColumn))
	}

	if key != "" {
		if l, ok := right.Link(key); ok && l.Target == left.Name {
			return rightToLeft(l), nil
		}
		if l, ok := left.Link(key); ok && l.Target == right.Name {
			return leftToRight(l), nil
		}
		if _, ok := right.Attribute(key); ok {
			return "", invalid("join_key", "%s.%s does not link to %s", right.Name, key, left.Name)
		}
		if _, ok := left.Attribute(key); ok {
			return "", invalid("join_key", "%s.%s does not link to %s", left.Name, key, right.Name)
		}
		return "", &catalog.NotFoundError{Entity: right.Name, Attribute: key}
	}

	fromRight := right.LinksTo(left.Name)
	fromLeft := left.LinksTo(right.Name)
	switch {
	case len(fromRight)+len(fromLeft) == 0:
		return "", invalid("join_key", "no link connects %s and %s", left.Name, right.Name)
	case len(fromRight)+len(fromLeft) > 1:
		return "", invalid("join_key", "%s and %s are connected by more than one link; name the join key", left.Name, right.Name)
	case len(fromRight) == 1:
		return rightToLeft(fromRight[0]), nil
	default:
		return leftToRight(fromLeft[0]), nil
	}
}

// compileJoin: equi-join along one link; aggregates group by the left row.
func (c *Compiler) compileJoin(q queryir.JoinProjection) (Statement, error) {
	left, err := c.catalog.Lookup(q.Left)
	if err != nil {
		return Statement{}, err
	}
	right, err := c.catalog.Lookup(q.Right)
	if err != nil {
		return Statement{}, err
	}
	on, err := c.joinCondition(left, right, q.JoinKey)
	if err != nil {
		return Statement{}, err
	}

	grouped := false
	for _, it := range q.Projection {
		if it.Aggregate() {
			grouped = true
		}
	}

	var b builder
	for _, it := range q.Projection {
		side, table := it.Side, right
		if side == queryir.SideAuto {
			side = queryir.SideRight
			if _, ok := left.Attribute(it.Column); ok && !it.Aggregate() {
				side = queryir.SideLeft
			}
		}
		alias := "r"
		if side == queryir.SideLeft {
			alias, table = "l", left
		}

		if !it.Aggregate() {
			a, err := attribute(table, it.Column)
			if err != nil {
				return Statement{}, err
			}
			if grouped && side == queryir.SideRight {
				return Statement{}, invalid("projection", "%s.%s must be aggregated when the projection has aggregates", right.Name, it.Column)
			}
			b.add(col(alias, a.Name), it.Name(), a.Type)
			continue
		}

		expr, typ, err := aggregate(table, alias, it.Func, it.Column)
		if err != nil {
			return Statement{}, err
		}
		if it.Func == queryir.Sum {
			expr = fmt.Sprintf("COALESCE(%s, 0)", expr)
		}
		b.add(expr, it.Name(), typ)
	}

	kind := "INNER JOIN"
	if q.Kind == queryir.LeftOuter {
		kind = "LEFT JOIN"
	}
	sql := fmt.Sprintf("SELECT %s FROM %s l %s %s r ON %s",
		strings.Join(b.selects, ", "), store.Quote(left.SQLName), kind, store.Quote(right.SQLName), on)
	if grouped {
		sql += fmt.Sprintf(" GROUP BY %s ORDER BY %s ASC", col("l", catalog.IDColumn), col("l", catalog.IDColumn))
	} else {
		sql += fmt.Sprintf(" ORDER BY %s ASC, %s ASC", col("l", catalog.IDColumn), col("r", catalog.IDColumn))
	}
	return Statement{SQL: sql, Params: []any{}, Columns: b.columns}, nil
}

// countsRows reports whether fn with measure counts matched rows.
func countsRows(fn queryir.AggFunc, measure string) bool {
	return fn == queryir.Count && (measure == "" || measure == "*")
}

// aggregate renders fn over a column of t and returns the result type.
// Count of "*" or "" counts matched rows (by id, so unmatched outer rows
// count 0).
func aggregate(t *catalog.Table, alias string, fn queryir.AggFunc, measure string) (string, catalog.ColumnType, error) {
	if countsRows(fn, measure) {
		return fmt.Sprintf("COUNT(%s)", col(alias, catalog.IDColumn)), catalog.TypeInt, nil
	}
	a, err := attribute(t, measure)
	if err != nil {
		return "", "", err
	}
	return aggregateOver(resolved{table: t, alias: alias, attr: a}, fn)
}

func aggregateOver(m resolved, fn queryir.AggFunc) (string, catalog.ColumnType, error) {
	t, a, expr := m.table, m.attr, col(m.alias, m.attr.Name)
	switch fn {
	case queryir.Count:
		return fmt.Sprintf("COUNT(%s)", expr), catalog.TypeInt, nil
	case queryir.Sum:
		if !a.Type.Numeric() || a.Link != nil {
			return "", "", invalid("measure", "sum needs a numeric column, %s.%s is %s", t.Name, a.Name, describeAttr(a))
		}
		return fmt.Sprintf("SUM(%s)", expr), a.Type, nil
	case queryir.Avg:
		if !a.Type.Numeric() || a.Link != nil {
			return "", "", invalid("measure", "avg needs a numeric column, %s.%s is %s", t.Name, a.Name, describeAttr(a))
		}
		return fmt.Sprintf("AVG(%s)", expr), catalog.TypeReal, nil
	case queryir.Max:
		return fmt.Sprintf("MAX(%s)", expr), a.Type, nil
	}
	return "", "", invalid("fn", "unknown aggregate function %q", fn)
}

func describeAttr(a catalog.Attribute) string {
	if a.Link != nil {
		return "a link"
	}
	return string(a.Type)
}

// resolved is an attribute read either from the queried table or from the
// row one of its links points at.
type resolved struct {
	table *catalog.Table
	alias string
	attr  catalog.Attribute
	join  string // LEFT JOIN reaching the linked row, empty for a plain column
}

// resolvePath resolves "column" or "link.column" on t (alias). The linked
// table of a path is joined as hopAlias.
func (c *Compiler) resolvePath(t *catalog.Table, alias, name, hopAlias string) (resolved, error) {
	linkName, column := queryir.SplitPath(name)
	if linkName == "" {
		a, err := attribute(t, column)
		if err != nil {
			return resolved{}, err
		}
		return resolved{table: t, alias: alias, attr: a}, nil
	}

	l, ok := t.Link(linkName)
	if !ok {
		if _, isColumn := t.Attribute(linkName); isColumn {
			return resolved{}, invalid("path", "%s.%s is not a link", t.Name, linkName)
		}
		return resolved{}, &catalog.NotFoundError{Entity: t.Name, Attribute: linkName}
	}
	target, _ := c.catalog.Table(l.Target)
	a, err := attribute(target, column)
	if err != nil {
		return resolved{}, err
	}
	return resolved{
		table: target,
		alias: hopAlias,
		attr:  a,
		join: fmt.Sprintf("LEFT JOIN %s %s ON %s = %s",
			store.Quote(target.SQLName), hopAlias, col(hopAlias, catalog.IDColumn), col(alias, l.Column)),
	}, nil
}

// compileGroup: group by a column, by a link labelled with its target, or
// by nothing for one global group. Key and measure may follow one link.
func (c *Compiler) compileGroup(q queryir.GroupAggregate) (Statement, error) {
	t, err := c.catalog.Lookup(q.Entity)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	var joins []string
	var groupBy string
	var orderKey []string
	if q.GroupKey != "" {
		key, err := c.resolvePath(t, "t", q.GroupKey, "k")
		if err != nil {
			return Statement{}, err
		}
		if key.join != "" {
			joins = append(joins, key.join)
		}
		groupBy = col(key.alias, key.attr.Name)
		orderKey = []string{groupBy + " ASC"}
		if key.attr.Link != nil {
			lj := c.linkLabel(key.table, key.alias, *key.attr.Link, "g")
			b.add(lj.expr, lj.name, lj.typ)
			if lj.join != "" {
				joins = append(joins, lj.join)
			}
			if lj.order != groupBy {
				orderKey = append([]string{lj.order + " ASC"}, orderKey...)
			}
		} else {
			b.add(groupBy, key.attr.Name, key.attr.Type)
		}
	}

	aggName := string(q.Func)
	var aggExpr string
	var aggType catalog.ColumnType
	if countsRows(q.Func, q.Measure) {
		aggExpr, aggType = fmt.Sprintf("COUNT(%s)", col("t", catalog.IDColumn)), catalog.TypeInt
	} else {
		m, err := c.resolvePath(t, "t", q.Measure, "m")
		if err != nil {
			return Statement{}, err
		}
		if m.join != "" {
			joins = append(joins, m.join)
		}
		if aggExpr, aggType, err = aggregateOver(m, q.Func); err != nil {
			return Statement{}, err
		}
		aggName += "_" + m.attr.Name
	}
	b.add(aggExpr, aggName, aggType)

	sql := fmt.Sprintf("SELECT %s FROM %s t", strings.Join(b.selects, ", "), store.Quote(t.SQLName))
	for _, j := range joins {
		sql += " " + j
	}
	if groupBy != "" {
		sql += " GROUP BY " + groupBy
	}

	params := []any{}
	if q.Having != nil {
		having, hp, err := compilePredicate(q.Having, aggExpr)
		if err != nil {
			return Statement{}, err
		}
		if having != "" {
			sql += " HAVING " + having
			params = append(params, hp...)
		}
	}

	switch {
	case q.Rank != nil:
		sql += fmt.Sprintf(" ORDER BY %s %s, %s", aggExpr, direction(q.Rank.Order, queryir.Desc), strings.Join(orderKey, ", "))
		if q.Rank.Limit > 0 {
			sql += " LIMIT ?"
			params = append(params, int64(q.Rank.Limit))
		}
	case len(orderKey) > 0:
		sql += " ORDER BY " + strings.Join(orderKey, ", ")
	}

	return Statement{SQL: sql, Params: params, Columns: b.columns}, nil
}

// compilePredicate compiles a HAVING predicate over the aggregate
// expression. An empty And compiles to "".
// CRITICAL: values are NEVER interpolated - always parameterized.
func compilePredicate(p queryir.Predicate, aggExpr string) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return compileCompare(pred, aggExpr)
	case *queryir.Compare:
		return compileCompare(*pred, aggExpr)
	case queryir.And:
		return compileAnd(pred, aggExpr)
	case *queryir.And:
		return compileAnd(*pred, aggExpr)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileCompare(cmp queryir.Compare, aggExpr string) (string, []any, error) {
	param, err := ir.Param(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s %s ?", aggExpr, cmp.Op), []any{param}, nil
}

func compileAnd(and queryir.And, aggExpr string) (string, []any, error) {
	var parts []string
	var params []any
	for _, sub := range and.Predicates {
		sql, p, err := compilePredicate(sub, aggExpr)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// compileStale: open spans older than the threshold at the reference time.
func (c *Compiler) compileStale(q queryir.StaleFilter) (Statement, error) {
	t, err := c.catalog.Lookup(q.Relationship)
	if err != nil {
		return Statement{}, err
	}
	if t.Span == nil {
		return Statement{}, invalid("relationship", "%s declares no span", t.Name)
	}

	elapsed := fmt.Sprintf("julianday(?) - julianday(%s)", col("t", t.Span.Start))
	ref := ir.NewTime(q.Reference).String()

	var b builder
	var joins []string
	b.add(col("t", catalog.IDColumn), catalog.IDColumn, catalog.TypeInt)
	for _, lj := range c.linkLabels(t, "t") {
		b.add(lj.expr, lj.name, lj.typ)
		if lj.join != "" {
			joins = append(joins, lj.join)
		}
	}
	for _, column := range t.Columns {
		if column.Name == t.Span.End {
			continue
		}
		b.add(col("t", column.Name), column.Name, column.Type)
	}
	b.add(elapsed, "days_open", catalog.TypeReal)

	sql := fmt.Sprintf("SELECT %s FROM %s t", strings.Join(b.selects, ", "), store.Quote(t.SQLName))
	for _, j := range joins {
		sql += " " + j
	}
	sql += fmt.Sprintf(" WHERE %s IS NULL AND %s > ? ORDER BY %s ASC, %s ASC",
		col("t", t.Span.End), elapsed, col("t", t.Span.Start), col("t", catalog.IDColumn))

	return Statement{SQL: sql, Params: []any{ref, ref, q.ThresholdDays}, Columns: b.columns}, nil
}
