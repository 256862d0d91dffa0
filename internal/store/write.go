package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

// Tx is a write transaction. All writes of one load batch go through a
// single Tx so they commit or roll back together.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. No-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ResolveKey returns the id of the dimension row with the given natural key,
// inserting it with attrs when absent. Attributes of an existing row are
// left unchanged.
//
// Uses ON CONFLICT(key) DO NOTHING, then falls back to a SELECT when no row
// was inserted.
func (t *Tx) ResolveKey(ctx context.Context, table *catalog.Table, key string, attrs map[string]ir.Value) (id int64, created bool, err error) {
	return resolveKey(ctx, t.tx, table, key, attrs)
}

// Insert appends a row and returns its id. values is keyed by column or
// link name; absent names are stored as NULL.
func (t *Tx) Insert(ctx context.Context, table *catalog.Table, values map[string]ir.Value) (int64, error) {
	return insertRow(ctx, t.tx, table, values)
}

// LookupKey returns the id of the dimension row with the given natural key.
func (t *Tx) LookupKey(ctx context.Context, table *catalog.Table, key string) (int64, bool, error) {
	return lookupKey(ctx, t.tx, table, key)
}

// Exists reports whether table has a row with the given id.
func (t *Tx) Exists(ctx context.Context, table *catalog.Table, id int64) (bool, error) {
	return rowExists(ctx, t.tx, table, id)
}

func resolveKey(ctx context.Context, q querier, table *catalog.Table, key string, attrs map[string]ir.Value) (int64, bool, error) {
	if table.Kind != catalog.KindDimension {
		return 0, false, fmt.Errorf("resolve %s: not a dimension", table.Name)
	}

	values := make(map[string]ir.Value, len(attrs)+1)
	for name, v := range attrs {
		values[name] = v
	}
	values[table.Key] = ir.String(key)

	cols, args, err := orderedValues(table, values)
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s: %w", table.Name, err)
	}

	result, err := q.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
		Quote(table.SQLName), strings.Join(cols, ", "), placeholders(len(cols)), Quote(table.Key),
	), args...)
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s: insert: %w", table.Name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s: rows affected: %w", table.Name, err)
	}
	if rowsAffected > 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("resolve %s: last insert id: %w", table.Name, err)
		}
		return id, true, nil
	}

	// Conflict - row already exists, fetch the existing ID
	id, ok, err := lookupKey(ctx, q, table, key)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("resolve %s: key %q vanished after conflict", table.Name, key)
	}
	return id, false, nil
}

func insertRow(ctx context.Context, q querier, table *catalog.Table, values map[string]ir.Value) (int64, error) {
	cols, args, err := orderedValues(table, values)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table.Name, err)
	}

	var stmt string
	if len(cols) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", Quote(table.SQLName))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			Quote(table.SQLName), strings.Join(cols, ", "), placeholders(len(cols)))
	}

	result, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", table.Name, err)
	}
	return id, nil
}

func lookupKey(ctx context.Context, q querier, table *catalog.Table, key string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		Quote(catalog.IDColumn), Quote(table.SQLName), Quote(table.Key),
	), key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s %q: %w", table.Name, key, err)
	}
	return id, true, nil
}

func rowExists(ctx context.Context, q querier, table *catalog.Table, id int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s = ?",
		Quote(table.SQLName), Quote(catalog.IDColumn),
	), id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s id %d: %w", table.Name, id, err)
	}
	return count > 0, nil
}

// orderedValues returns the quoted column names and bound arguments of
// values in declaration order (columns, then links). Unknown names are an
// error.
func orderedValues(table *catalog.Table, values map[string]ir.Value) ([]string, []any, error) {
	var cols []string
	var vals []ir.Value
	used := 0
	for _, col := range table.Columns {
		if v, ok := values[col.Name]; ok {
			cols = append(cols, Quote(col.Name))
			vals = append(vals, v)
			used++
		}
	}
	for _, l := range table.Links {
		if v, ok := values[l.Column]; ok {
			cols = append(cols, Quote(l.Column))
			vals = append(vals, v)
			used++
		}
	}
	if used != len(values) {
		for name := range values {
			if _, ok := table.Attribute(name); !ok || name == catalog.IDColumn {
				return nil, nil, fmt.Errorf("unknown column %q", name)
			}
		}
	}

	args, err := bindArgs(vals)
	if err != nil {
		return nil, nil, err
	}
	return cols, args, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
