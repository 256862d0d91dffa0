package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

// TableRows is a full read of one table.
type TableRows struct {
	Columns []string
	Types   []catalog.ColumnType
	Rows    [][]ir.Value
}

// Tables returns the user tables present in the store, sorted by name.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, table *catalog.Table) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", Quote(table.SQLName))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table.Name, err)
	}
	return n, nil
}

// ReadTable returns every row of a table ordered by id: the id, then the
// declared columns, then the link columns.
func (s *Store) ReadTable(ctx context.Context, table *catalog.Table) (*TableRows, error) {
	out := &TableRows{
		Columns: []string{catalog.IDColumn},
		Types:   []catalog.ColumnType{catalog.TypeInt},
	}
	for _, col := range table.Columns {
		out.Columns = append(out.Columns, col.Name)
		out.Types = append(out.Types, col.Type)
	}
	for _, l := range table.Links {
		out.Columns = append(out.Columns, l.Column)
		out.Types = append(out.Types, catalog.TypeInt)
	}

	quoted := make([]string, len(out.Columns))
	for i, c := range out.Columns {
		quoted[i] = Quote(c)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s ASC",
		strings.Join(quoted, ", "), Quote(table.SQLName), Quote(catalog.IDColumn),
	))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	out.Rows, err = ScanRows(rows, out.Types)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	return out, nil
}
