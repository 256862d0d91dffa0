package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relcat/internal/catalogs"
	"github.com/roach88/relcat/internal/loader"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/store"
	"github.com/roach88/relcat/internal/testutil"
)

// Harness executes one scenario against its own store.
type Harness struct {
	loader *loader.Loader
	engine *query.Engine
	logger *slog.Logger
}

type config struct {
	logger *slog.Logger
}

// Option configures Run.
type Option func(*config)

// WithLogger sets the logger passed to the store, loader and engine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// sequential batch ids so repeated runs produce identical results.
//
// Execution flow:
// 1. Resolve the catalog and create its schema
// 2. Load each batch and check its expectation
// 3. Run each query and check its expectation
//
// Expectation failures are recorded in the result. The returned error is
// reserved for failures to set up the scenario at all.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	cat, err := catalogs.Resolve(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: catalog: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:", store.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: failed to create in-memory store: %w", scenario.Name, err)
	}
	defer st.Close()

	if _, err := st.CreateSchema(ctx, cat); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		loader: loader.New(st, cat,
			loader.WithLogger(cfg.logger),
			loader.WithIDGenerator(testutil.NewSequentialIDs(scenario.Name))),
		engine: query.NewEngine(st, cat, query.WithLogger(cfg.logger)),
		logger: cfg.logger,
	}

	result := NewResult(scenario.Name)
	h.executeBatches(ctx, scenario.Batches, result)
	h.executeQueries(ctx, scenario, result)
	return result, nil
}

// executeBatches loads every batch in order. A failed batch does not stop
// the scenario: later batches see the store as the failed batch left it,
// which is unchanged.
func (h *Harness) executeBatches(ctx context.Context, batches []BatchSpec, result *Result) {
	for i, spec := range batches {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("batch %d", i)
		}

		outcome := BatchOutcome{Name: name}
		res, err := h.loader.LoadBatch(ctx, spec.Batch())
		if err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Result = &res
		}
		result.Batches = append(result.Batches, outcome)

		for _, e := range checkBatch(name, spec.Expect, res, err) {
			result.AddError(e.Error())
		}

		h.logger.Info("batch step completed",
			"step", i,
			"name", name,
			"rows", spec.Batch().Len(),
			"error", outcome.Error,
		)
	}
}

// executeQueries runs every query and validates its expect clause.
func (h *Harness) executeQueries(ctx context.Context, scenario *Scenario, result *Result) {
	for i, spec := range scenario.Queries {
		subject := "query " + spec.Name
		outcome := QueryOutcome{Name: spec.Name}

		var res *query.Result
		q, err := spec.Query(scenario.Reference)
		if err == nil {
			res, err = h.engine.Run(ctx, q)
		}
		if err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Result = res
		}
		result.Queries = append(result.Queries, outcome)

		for _, e := range checkQuery(subject, spec.Expect, res, err) {
			result.AddError(e.Error())
		}

		h.logger.Info("query step completed",
			"step", i,
			"name", spec.Name,
			"error", outcome.Error,
		)
	}
}

// Batch converts the spec into a loader batch.
func (b BatchSpec) Batch() loader.Batch {
	var batch loader.Batch
	for _, d := range b.Dimensions {
		batch.Dimensions = append(batch.Dimensions, loader.DimensionRow{
			Table: d.Table,
			Key:   d.Key,
			Attrs: d.Attrs,
		})
	}
	for _, f := range b.Facts {
		batch.Facts = append(batch.Facts, loader.FactRow{
			Table:  f.Table,
			Handle: f.Handle,
			Values: f.Values,
			Links:  parseLinks(f.Links),
		})
	}
	for _, r := range b.Relationships {
		batch.Relationships = append(batch.Relationships, loader.RelationshipRow{
			Table:  r.Table,
			Values: r.Values,
			Links:  parseLinks(r.Links),
		})
	}
	return batch
}

func parseLinks(links map[string]string) map[string]loader.Ref {
	if links == nil {
		return nil
	}
	refs := make(map[string]loader.Ref, len(links))
	for col, s := range links {
		refs[col] = loader.ParseRef(s)
	}
	return refs
}
