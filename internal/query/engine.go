// Package query executes QueryIR queries against a store and returns
// typed, ordered result rows. Queries never mutate the store.
package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/queryir"
	"github.com/roach88/relcat/internal/querysql"
	"github.com/roach88/relcat/internal/store"
)

// Row is one result row, values in column order.
type Row []ir.Value

// Result is the ordered output of a query. An empty result has no rows
// but still carries its columns.
type Result struct {
	Columns []querysql.Column `json:"columns"`
	Rows    []Row             `json:"rows"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// Index returns the position of the named column, or -1.
func (r *Result) Index(name string) int {
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the value of the named column in row i.
// Returns ir.Null for an unknown column.
func (r *Result) Value(i int, name string) ir.Value {
	j := r.Index(name)
	if j < 0 || i < 0 || i >= len(r.Rows) {
		return ir.Null{}
	}
	return r.Rows[i][j]
}

// Hash returns the content hash of the rows (column names included), so
// two runs can be compared for identical output.
func (r *Result) Hash() (string, error) {
	rows := make(ir.Array, 0, len(r.Rows)+1)
	header := make(ir.Array, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = ir.String(c.Name)
	}
	rows = append(rows, header)
	for _, row := range r.Rows {
		rows = append(rows, ir.Array(row))
	}
	return ir.RowsHash(rows)
}

// Engine runs queries against one catalog's tables.
//
// Thread-safety: Engine holds no mutable state; concurrency is bounded by
// the store's single connection.
type Engine struct {
	store    *store.Store
	catalog  *catalog.Catalog
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for query execution.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine over s resolving names against c.
func NewEngine(s *store.Store, c *catalog.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		catalog:  c,
		compiler: querysql.NewCompiler(c),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine resolves names against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Run compiles and executes q.
//
// Returns *catalog.NotFoundError for unknown entities or attributes and
// *catalog.ValidationError for bad parameters; an empty result is not an
// error.
func (e *Engine) Run(ctx context.Context, q queryir.Query) (*Result, error) {
	stmt, err := e.compiler.Compile(q)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query",
		"type", fmt.Sprintf("%T", q),
		"sql", stmt.SQL,
		"params", len(stmt.Params))

	rows, err := e.store.Query(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	values, err := store.ScanRows(rows, stmt.Types())
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	result := &Result{Columns: stmt.Columns, Rows: make([]Row, len(values))}
	for i, v := range values {
		result.Rows[i] = v
	}
	return result, nil
}

// TopN returns the first n rows of entity ordered by metric, ties broken
// by ascending id. Rows with a null metric are excluded.
func (e *Engine) TopN(ctx context.Context, entity, metric string, n int, order queryir.Order) (*Result, error) {
	return e.Run(ctx, queryir.TopN{Entity: entity, Metric: metric, N: n, Order: order})
}

// JoinProjection equi-joins left and right along joinKey (or the single
// link connecting them when joinKey is empty).
func (e *Engine) JoinProjection(ctx context.Context, left, right, joinKey string, projection []queryir.Item, kind queryir.JoinKind) (*Result, error) {
	return e.Run(ctx, queryir.JoinProjection{
		Left:       left,
		Right:      right,
		JoinKey:    joinKey,
		Projection: projection,
		Kind:       kind,
	})
}

// GroupAggregate groups entity by groupKey and aggregates measure with fn,
// keeping groups that satisfy having (nil keeps all).
func (e *Engine) GroupAggregate(ctx context.Context, entity, groupKey string, fn queryir.AggFunc, measure string, having queryir.Predicate) (*Result, error) {
	return e.Run(ctx, queryir.GroupAggregate{
		Entity:   entity,
		GroupKey: groupKey,
		Func:     fn,
		Measure:  measure,
		Having:   having,
	})
}

// StaleFilter returns open rows of relationship started more than
// thresholdDays before reference.
func (e *Engine) StaleFilter(ctx context.Context, relationship string, reference time.Time, thresholdDays float64) (*Result, error) {
	return e.Run(ctx, queryir.StaleFilter{
		Relationship:  relationship,
		Reference:     reference,
		ThresholdDays: thresholdDays,
	})
}
