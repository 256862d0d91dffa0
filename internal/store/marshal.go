package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

// bindArgs converts values to database/sql arguments.
func bindArgs(values []ir.Value) ([]any, error) {
	args := make([]any, len(values))
	for i, v := range values {
		arg, err := ir.Param(v)
		if err != nil {
			return nil, fmt.Errorf("bind argument %d: %w", i, err)
		}
		args[i] = arg
	}
	return args, nil
}

// ScanRows reads every remaining row, decoding column i as types[i].
// Closes rows. Returns an empty slice (not nil) when there are no rows.
func ScanRows(rows *sql.Rows, types []catalog.ColumnType) ([][]ir.Value, error) {
	defer rows.Close()

	out := [][]ir.Value{}
	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]ir.Value, len(types))
		for i, typ := range types {
			v, err := catalog.Decode(typ, raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode column %d: %w", i, err)
			}
			row[i] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
