package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/store"
)

// Loader writes validated rows of one catalog into a store.
//
// Thread-safety: Loader is NOT safe for concurrent use. The store holds a
// single connection and each batch is one transaction.
type Loader struct {
	store   *store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger
	ids     IDGenerator
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for batch lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithIDGenerator sets the batch id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(l *Loader) {
		l.ids = gen
	}
}

// New creates a Loader. The catalog's schema must already exist in the
// store (see store.Store.CreateSchema).
func New(s *store.Store, c *catalog.Catalog, opts ...Option) *Loader {
	l := &Loader{
		store:   s,
		catalog: c,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Catalog returns the catalog rows are validated against.
func (l *Loader) Catalog() *catalog.Catalog {
	return l.catalog
}

// ResolveDimension returns the id of the dimension row with the given
// natural key, creating it with attrs when absent. Attributes of an
// existing row are left unchanged, so repeated calls return the same id.
func (l *Loader) ResolveDimension(ctx context.Context, table, key string, attrs map[string]any) (int64, error) {
	ref := catalog.RowRef{Kind: catalog.KindDimension, Table: table, Key: key}
	d, err := l.prepareDimension(ref, table, key, attrs)
	if err != nil {
		return 0, err
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // No-op if committed

	id, created, err := resolveDimension(ctx, tx, d)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("resolve %s %q: commit: %w", table, d.key, err)
	}

	l.logger.Debug("dimension resolved",
		"table", table,
		"key", d.key,
		"id", id,
		"created", created)
	return id, nil
}

// LoadBatch validates b, then writes dimension rows, fact rows and
// relationship rows in that order within one transaction. Any failure
// rolls back the whole batch and returns a catalog.ValidationError or
// catalog.IntegrityError naming the offending row.
func (l *Loader) LoadBatch(ctx context.Context, b Batch) (BatchResult, error) {
	prepared, err := l.prepare(b)
	if err != nil {
		l.logger.Warn("batch rejected", "error", err)
		return BatchResult{}, err
	}

	hash, err := ir.BatchHash(prepared.canonical())
	if err != nil {
		return BatchResult{}, fmt.Errorf("load batch: %w", err)
	}

	result := BatchResult{
		ID:      l.ids.Generate(),
		Hash:    hash,
		Handles: make(map[string]int64),
	}
	logger := l.logger.With("batch", result.ID)
	logger.Debug("batch started",
		"catalog", l.catalog.Name,
		"rows", b.Len(),
		"hash", hash)

	if err := l.write(ctx, prepared, &result); err != nil {
		logger.Warn("batch rolled back", "error", err)
		return BatchResult{}, err
	}

	logger.Info("batch committed",
		"dimensions_created", result.DimensionsCreated,
		"dimensions_reused", result.DimensionsReused,
		"facts", result.Facts,
		"relationships", result.Relationships)
	return result, nil
}

// write runs the prepared batch in one transaction.
func (l *Loader) write(ctx context.Context, p *preparedBatch, result *BatchResult) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	w := &batchWriter{tx: tx, result: result}

	for _, d := range p.dimensions {
		_, created, err := resolveDimension(ctx, tx, d)
		if err != nil {
			return err
		}
		w.count(created)
	}

	for _, r := range p.facts {
		id, err := w.insert(ctx, r)
		if err != nil {
			return err
		}
		if r.handle != "" {
			result.Handles[r.handle] = id
		}
		result.Facts++
	}

	for _, r := range p.relationships {
		if _, err := w.insert(ctx, r); err != nil {
			return err
		}
		result.Relationships++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("load batch: commit: %w", err)
	}
	return nil
}

// resolveDimension looks the key up and inserts the row when absent.
// A row missing a required attribute can only be reused, not created.
func resolveDimension(ctx context.Context, tx *store.Tx, d preparedDimension) (int64, bool, error) {
	id, ok, err := tx.LookupKey(ctx, d.table, d.key)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return id, false, nil
	}

	for _, name := range d.table.Required() {
		if v, ok := d.attrs[name]; !ok || ir.IsNull(v) {
			return 0, false, &catalog.ValidationError{Row: d.ref, Field: name, Message: "required attribute missing for new dimension row"}
		}
	}

	id, created, err := tx.ResolveKey(ctx, d.table, d.key, d.attrs)
	if err != nil {
		return 0, false, store.Classify(err, d.ref, "")
	}
	return id, created, nil
}

// batchWriter resolves links and inserts rows within one transaction.
type batchWriter struct {
	tx     *store.Tx
	result *BatchResult
}

func (w *batchWriter) count(created bool) {
	if created {
		w.result.DimensionsCreated++
	} else {
		w.result.DimensionsReused++
	}
}

func (w *batchWriter) insert(ctx context.Context, r preparedRow) (int64, error) {
	values := make(map[string]ir.Value, len(r.values)+len(r.links))
	for name, v := range r.values {
		values[name] = v
	}
	for _, pl := range r.links {
		id, err := w.resolveLink(ctx, r.ref, pl)
		if err != nil {
			return 0, err
		}
		values[pl.link.Column] = ir.Int(id)
	}

	id, err := w.tx.Insert(ctx, r.table, values)
	if err != nil {
		return 0, store.Classify(err, r.ref, "")
	}
	return id, nil
}

// resolveLink turns a reference into the id of its target row.
func (w *batchWriter) resolveLink(ctx context.Context, row catalog.RowRef, pl preparedLink) (int64, error) {
	unresolved := func(format string, args ...any) error {
		return &catalog.IntegrityError{Row: row, Field: pl.link.Column, Message: "unresolved: " + fmt.Sprintf(format, args...)}
	}

	switch pl.ref.kind {
	case refKey:
		id, ok, err := w.tx.LookupKey(ctx, pl.target, pl.ref.value)
		if err != nil {
			return 0, err
		}
		if ok {
			return id, nil
		}
		if len(pl.target.Required()) > 0 {
			return 0, unresolved("no %s with key %q, and it cannot be created from its key alone", pl.target.Name, pl.ref.value)
		}
		id, created, err := w.tx.ResolveKey(ctx, pl.target, pl.ref.value, nil)
		if err != nil {
			return 0, store.Classify(err, row, pl.link.Column)
		}
		if created {
			w.result.DimensionsCreated++
		}
		return id, nil

	case refHandle:
		id, ok := w.result.Handles[pl.ref.value]
		if !ok {
			return 0, unresolved("handle %q", pl.ref.value)
		}
		return id, nil

	case refID:
		ok, err := w.tx.Exists(ctx, pl.target, pl.ref.id)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, unresolved("no %s with id %d", pl.target.Name, pl.ref.id)
		}
		return pl.ref.id, nil
	}
	return 0, unresolved("empty reference")
}
