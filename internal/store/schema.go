package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/roach88/relcat/internal/catalog"
)

// SchemaReport lists the physical tables touched by CreateSchema,
// in catalog declaration order.
type SchemaReport struct {
	Created  []string // Tables created by this call
	Verified []string // Tables already present and matching
}

// CreateSchema declares every table of the catalog in one transaction.
//
// Absent tables are created with their key, link and check constraints and
// one index per link column. Present tables are compared with the
// declaration and left untouched; a structural mismatch returns a
// catalog.SchemaError and nothing is created. Calling CreateSchema again
// with the same catalog is a no-op.
func (s *Store) CreateSchema(ctx context.Context, c *catalog.Catalog) (SchemaReport, error) {
	report := SchemaReport{Created: []string{}, Verified: []string{}}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("create schema: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for i := range c.Tables {
		t := &c.Tables[i]

		exists, err := tableExists(ctx, tx, t.SQLName)
		if err != nil {
			return report, fmt.Errorf("create schema: %w", err)
		}

		if exists {
			if err := verifyTable(ctx, tx, c, t); err != nil {
				return report, err
			}
			report.Verified = append(report.Verified, t.SQLName)
			continue
		}

		for _, stmt := range createStatements(c, t) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return report, fmt.Errorf("create schema: %s: %w", t.SQLName, err)
			}
		}
		report.Created = append(report.Created, t.SQLName)
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("create schema: commit: %w", err)
	}

	s.logger.Debug("schema ready",
		"catalog", c.Name,
		"created", len(report.Created),
		"verified", len(report.Verified))
	return report, nil
}

// VerifySchema compares every table of the catalog with the store without
// creating anything. A missing table is a catalog.SchemaError, so readers
// can tell an empty database from one written under another catalog.
func (s *Store) VerifySchema(ctx context.Context, c *catalog.Catalog) (SchemaReport, error) {
	report := SchemaReport{Created: []string{}, Verified: []string{}}

	for i := range c.Tables {
		t := &c.Tables[i]

		exists, err := tableExists(ctx, s.db, t.SQLName)
		if err != nil {
			return report, fmt.Errorf("verify schema: %w", err)
		}
		if !exists {
			return report, &catalog.SchemaError{Table: t.SQLName, Message: "table missing from store; declare it with init or load"}
		}
		if err := verifyTable(ctx, s.db, c, t); err != nil {
			return report, err
		}
		report.Verified = append(report.Verified, t.SQLName)
	}

	s.logger.Debug("schema verified", "catalog", c.Name, "verified", len(report.Verified))
	return report, nil
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

// createStatements returns the CREATE TABLE statement followed by one
// CREATE INDEX per link column.
func createStatements(c *catalog.Catalog, t *catalog.Table) []string {
	var defs []string
	defs = append(defs, Quote(catalog.IDColumn)+" INTEGER PRIMARY KEY AUTOINCREMENT")

	for _, col := range t.Columns {
		def := Quote(col.Name) + " " + col.Type.SQLType()
		if !col.Nullable {
			def += " NOT NULL"
		}
		if t.Kind == catalog.KindDimension && col.Name == t.Key {
			def += " UNIQUE"
		}
		defs = append(defs, def)
	}

	for _, l := range t.Links {
		target, _ := c.Table(l.Target)
		def := fmt.Sprintf("%s INTEGER", Quote(l.Column))
		if !l.Nullable {
			def += " NOT NULL"
		}
		def += fmt.Sprintf(" REFERENCES %s(%s)", Quote(target.SQLName), Quote(catalog.IDColumn))
		defs = append(defs, def)
	}

	for _, chk := range checkConstraints(t) {
		defs = append(defs, "CHECK ("+chk.expr+")")
	}

	if t.Unique {
		cols := make([]string, len(t.Links))
		for i, l := range t.Links {
			cols[i] = Quote(l.Column)
		}
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", Quote(t.SQLName), strings.Join(defs, ",\n\t"))}
	for _, l := range t.Links {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			Quote(fmt.Sprintf("idx_%s_%s", t.SQLName, l.Column)), Quote(t.SQLName), Quote(l.Column)))
	}
	return stmts
}

// check is one CHECK constraint and the column it guards.
type check struct {
	column string
	expr   string
}

// checkConstraints lists the CHECK constraints declared for t: a non-empty
// natural key, non-negative measures and span order.
func checkConstraints(t *catalog.Table) []check {
	var out []check
	for _, col := range t.Columns {
		if t.Kind == catalog.KindDimension && col.Name == t.Key {
			out = append(out, check{col.Name, fmt.Sprintf("%s <> ''", Quote(col.Name))})
		}
		if col.NonNegative() {
			out = append(out, check{col.Name, fmt.Sprintf("%s >= 0", Quote(col.Name))})
		}
	}
	if t.Span != nil {
		out = append(out, check{t.Span.End, fmt.Sprintf("%s IS NULL OR %s >= %s",
			Quote(t.Span.End), Quote(t.Span.End), Quote(t.Span.Start))})
	}
	return out
}

// uniqueColumnSets returns the declared column sets that must be unique:
// the natural key of a dimension and the link tuple of a unique
// relationship.
func uniqueColumnSets(t *catalog.Table) [][]string {
	var out [][]string
	if t.Kind == catalog.KindDimension {
		out = append(out, []string{t.Key})
	}
	if t.Unique {
		cols := make([]string, len(t.Links))
		for i, l := range t.Links {
			cols[i] = l.Column
		}
		out = append(out, cols)
	}
	return out
}

// existingColumn is one row of PRAGMA table_info.
type existingColumn struct {
	name    string
	typ     string
	notNull bool
	pk      bool
}

// verifyTable compares an existing table with its declaration.
func verifyTable(ctx context.Context, q querier, c *catalog.Catalog, t *catalog.Table) error {
	fail := func(column, format string, args ...any) error {
		return &catalog.SchemaError{Table: t.SQLName, Column: column, Message: fmt.Sprintf(format, args...)}
	}

	existing, err := tableInfo(ctx, q, t.SQLName)
	if err != nil {
		return err
	}

	type expectation struct {
		typ     string
		notNull bool
	}
	want := map[string]expectation{catalog.IDColumn: {typ: "INTEGER"}}
	for _, col := range t.Columns {
		want[col.Name] = expectation{typ: col.Type.SQLType(), notNull: !col.Nullable}
	}
	for _, l := range t.Links {
		want[l.Column] = expectation{typ: "INTEGER", notNull: !l.Nullable}
	}

	seen := make(map[string]bool, len(existing))
	for _, col := range existing {
		seen[col.name] = true
		exp, ok := want[col.name]
		if !ok {
			return fail(col.name, "column exists in store but is not declared")
		}
		if col.name == catalog.IDColumn {
			if !col.pk {
				return fail(col.name, "id is not the primary key")
			}
			continue
		}
		if !strings.EqualFold(col.typ, exp.typ) {
			return fail(col.name, "type %s in store, declared %s", col.typ, exp.typ)
		}
		if col.notNull != exp.notNull {
			return fail(col.name, "nullability differs (store NOT NULL=%t, declared NOT NULL=%t)", col.notNull, exp.notNull)
		}
	}

	var missing []string
	for name := range want {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fail(missing[0], "declared column missing from store")
	}

	fks, err := foreignKeys(ctx, q, t.SQLName)
	if err != nil {
		return err
	}
	for _, l := range t.Links {
		target, _ := c.Table(l.Target)
		got, ok := fks[l.Column]
		if !ok {
			return fail(l.Column, "no foreign key in store, declared reference to %s", target.SQLName)
		}
		if got != target.SQLName {
			return fail(l.Column, "references %s in store, declared %s", got, target.SQLName)
		}
	}

	uniques, err := uniqueIndexes(ctx, q, t.SQLName)
	if err != nil {
		return err
	}
	for _, want := range uniqueColumnSets(t) {
		if !slices.ContainsFunc(uniques, func(got []string) bool { return sameColumns(got, want) }) {
			return fail(want[0], "no UNIQUE constraint in store over (%s)", strings.Join(want, ", "))
		}
	}

	var ddl string
	err = q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, t.SQLName,
	).Scan(&ddl)
	if err != nil {
		return fmt.Errorf("table sql %s: %w", t.SQLName, err)
	}
	stored := normalizeSQL(ddl)
	for _, chk := range checkConstraints(t) {
		if !strings.Contains(stored, normalizeSQL("CHECK ("+chk.expr+")")) {
			return fail(chk.column, "no CHECK (%s) in store", chk.expr)
		}
	}
	return nil
}

// sameColumns reports whether a and b name the same columns in any order.
func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// normalizeSQL lowercases s and drops whitespace and identifier quotes so
// constraint text compares independent of formatting.
func normalizeSQL(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '"', '`', '[', ']':
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// uniqueIndexes lists the column sets of every UNIQUE index of table,
// including the automatic indexes behind UNIQUE constraints.
func uniqueIndexes(ctx context.Context, q querier, table string) ([][]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT il.name, ii.name FROM pragma_index_list(?) AS il, pragma_index_info(il.name) AS ii
		WHERE il."unique" = 1 ORDER BY il.seq ASC, ii.seqno ASC`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("unique indexes %s: %w", table, err)
	}
	defer rows.Close()

	var sets [][]string
	var current string
	for rows.Next() {
		var index string
		var column sql.NullString // NULL for expression indexes
		if err := rows.Scan(&index, &column); err != nil {
			return nil, fmt.Errorf("scan unique indexes %s: %w", table, err)
		}
		if len(sets) == 0 || index != current {
			sets = append(sets, nil)
			current = index
		}
		sets[len(sets)-1] = append(sets[len(sets)-1], column.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unique indexes %s: %w", table, err)
	}
	return sets, nil
}

func tableInfo(ctx context.Context, q querier, table string) ([]existingColumn, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid ASC`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []existingColumn
	for rows.Next() {
		var col existingColumn
		var notNull, pk int
		if err := rows.Scan(&col.name, &col.typ, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		col.notNull = notNull != 0
		col.pk = pk != 0
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return cols, nil
}

// foreignKeys maps each referencing column to its target table.
func foreignKeys(ctx context.Context, q querier, table string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT "from", "table" FROM pragma_foreign_key_list(?) ORDER BY id ASC, seq ASC`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	fks := make(map[string]string)
	for rows.Next() {
		var from, target string
		if err := rows.Scan(&from, &target); err != nil {
			return nil, fmt.Errorf("scan foreign keys %s: %w", table, err)
		}
		fks[from] = target
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys %s: %w", table, err)
	}
	return fks, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
