package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relcat/internal/catalogs"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/queryir"
)

// Scenario defines a fixture scenario.
// A scenario loads batches into a fresh store and checks the outcome of
// each batch and each query against its expectations.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a builtin catalog name or a CUE directory.
	// Directory paths are relative to the scenario file location.
	Catalog string `yaml:"catalog"`

	// Reference is the default reference time of stale queries.
	Reference string `yaml:"reference,omitempty"`

	// Batches are loaded in order, each in its own transaction.
	Batches []BatchSpec `yaml:"batches,omitempty"`

	// Queries run after every batch has been loaded.
	Queries []QuerySpec `yaml:"queries,omitempty"`
}

// BatchSpec is one load batch.
type BatchSpec struct {
	Name          string             `yaml:"name,omitempty"`
	Dimensions    []DimensionSpec    `yaml:"dimensions,omitempty"`
	Facts         []FactSpec         `yaml:"facts,omitempty"`
	Relationships []RelationshipSpec `yaml:"relationships,omitempty"`

	// Expect checks the batch outcome. If nil, the batch must commit.
	Expect *BatchExpect `yaml:"expect,omitempty"`
}

// DimensionSpec is a dimension row.
type DimensionSpec struct {
	Table string         `yaml:"table"`
	Key   string         `yaml:"key"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
}

// FactSpec is a fact row. Link values are "@handle", "#id" or a natural key.
type FactSpec struct {
	Table  string            `yaml:"table"`
	Handle string            `yaml:"handle,omitempty"`
	Values map[string]any    `yaml:"values,omitempty"`
	Links  map[string]string `yaml:"links,omitempty"`
}

// RelationshipSpec is a relationship row.
type RelationshipSpec struct {
	Table  string            `yaml:"table"`
	Values map[string]any    `yaml:"values,omitempty"`
	Links  map[string]string `yaml:"links,omitempty"`
}

// BatchExpect specifies the expected batch outcome.
// Counts are only checked when present.
type BatchExpect struct {
	// Error is the expected failure category. See ErrorKinds.
	Error string `yaml:"error,omitempty"`

	// Message must be contained in the error text.
	Message string `yaml:"message,omitempty"`

	Created       *int `yaml:"created,omitempty"`
	Reused        *int `yaml:"reused,omitempty"`
	Facts         *int `yaml:"facts,omitempty"`
	Relationships *int `yaml:"relationships,omitempty"`
}

// QuerySpec is one query. Exactly one of Top, Join, Group and Stale is set.
type QuerySpec struct {
	Name  string     `yaml:"name"`
	Top   *TopSpec   `yaml:"top,omitempty"`
	Join  *JoinSpec  `yaml:"join,omitempty"`
	Group *GroupSpec `yaml:"group,omitempty"`
	Stale *StaleSpec `yaml:"stale,omitempty"`

	Expect *QueryExpect `yaml:"expect,omitempty"`
}

// TopSpec selects the top N rows of an entity by a metric.
type TopSpec struct {
	Entity string `yaml:"entity"`
	Metric string `yaml:"metric"`
	N      int    `yaml:"n"`
	Order  string `yaml:"order,omitempty"`
}

// JoinSpec joins two entities along a link.
// Project is a comma-separated item list such as "title, count(*) as issues".
type JoinSpec struct {
	Left    string `yaml:"left"`
	Right   string `yaml:"right"`
	Key     string `yaml:"key,omitempty"`
	Project string `yaml:"project"`
	Kind    string `yaml:"kind,omitempty"`
}

// GroupSpec groups an entity and aggregates a measure.
type GroupSpec struct {
	Entity  string    `yaml:"entity"`
	By      string    `yaml:"by"`
	Fn      string    `yaml:"fn"`
	Measure string    `yaml:"measure,omitempty"`
	Having  []string  `yaml:"having,omitempty"`
	Rank    *RankSpec `yaml:"rank,omitempty"`
}

// RankSpec orders groups by their aggregate.
type RankSpec struct {
	Order string `yaml:"order,omitempty"`
	Limit int    `yaml:"limit,omitempty"`
}

// StaleSpec selects open relationship rows older than a threshold.
type StaleSpec struct {
	Relationship string  `yaml:"relationship"`
	Reference    string  `yaml:"reference,omitempty"`
	Threshold    float64 `yaml:"threshold"`
}

// QueryExpect specifies the expected query outcome.
type QueryExpect struct {
	// Error is the expected failure category. See ErrorKinds.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of rows.
	Count *int `yaml:"count,omitempty"`

	// Columns is the expected column list, in order.
	Columns []string `yaml:"columns,omitempty"`

	// Rows are compared in full and in order, one value per column.
	Rows [][]any `yaml:"rows,omitempty"`

	// First is a subset match against the first row.
	First map[string]any `yaml:"first,omitempty"`
}

// Error categories accepted by expect.error.
const (
	ErrorValidation = "validation"
	ErrorIntegrity  = "integrity"
	ErrorSchema     = "schema"
	ErrorNotFound   = "not_found"
	ErrorAny        = "any"
)

// ErrorKinds lists the accepted expect.error values.
var ErrorKinds = []string{ErrorValidation, ErrorIntegrity, ErrorSchema, ErrorNotFound, ErrorAny}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A catalog given as a relative directory is resolved against the
// scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(catalogs.Names(), scenario.Catalog) && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "querys:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Fixture is a load file: batches to load into an existing store.
// Batch expectations are not evaluated when loading a fixture.
type Fixture struct {
	Batches []BatchSpec `yaml:"batches"`
}

// LoadFixture reads and parses a fixture YAML file with the same strict
// field checking as scenarios.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var fixture Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(fixture.Batches) == 0 {
		return nil, fmt.Errorf("invalid fixture: batches list is required and must be non-empty")
	}
	for i, b := range fixture.Batches {
		if err := validateBatch(b); err != nil {
			return nil, fmt.Errorf("invalid fixture: batches[%d]: %w", i, err)
		}
	}
	return &fixture, nil
}

// validateScenario checks that required fields are present and valid.
// Table and column names are checked later against the catalog.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if len(s.Batches) == 0 && len(s.Queries) == 0 {
		return fmt.Errorf("at least one batch or query is required")
	}
	if s.Reference != "" {
		if _, err := ir.ParseTime(s.Reference); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}

	for i, b := range s.Batches {
		if err := validateBatch(b); err != nil {
			return fmt.Errorf("batches[%d]: %w", i, err)
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if err := validateQuery(s, q); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
	}
	return nil
}

func validateBatch(b BatchSpec) error {
	for i, d := range b.Dimensions {
		if d.Table == "" {
			return fmt.Errorf("dimensions[%d]: table is required", i)
		}
	}
	for i, f := range b.Facts {
		if f.Table == "" {
			return fmt.Errorf("facts[%d]: table is required", i)
		}
	}
	for i, r := range b.Relationships {
		if r.Table == "" {
			return fmt.Errorf("relationships[%d]: table is required", i)
		}
	}
	if b.Expect != nil && b.Expect.Error != "" && !slices.Contains(ErrorKinds, b.Expect.Error) {
		return fmt.Errorf("expect.error: unknown category %q (want one of %s)", b.Expect.Error, strings.Join(ErrorKinds, ", "))
	}
	return nil
}

func validateQuery(s *Scenario, q QuerySpec) error {
	if q.Name == "" {
		return fmt.Errorf("name is required")
	}

	set := 0
	for _, present := range []bool{q.Top != nil, q.Join != nil, q.Group != nil, q.Stale != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one of top, join, group, stale is required", q.Name)
	}

	if q.Stale != nil {
		ref := q.Stale.Reference
		if ref == "" {
			ref = s.Reference
		}
		if ref == "" {
			return fmt.Errorf("%s: stale needs a reference (on the query or the scenario)", q.Name)
		}
		if _, err := ir.ParseTime(ref); err != nil {
			return fmt.Errorf("%s: reference: %w", q.Name, err)
		}
	}

	if e := q.Expect; e != nil {
		if e.Error != "" && !slices.Contains(ErrorKinds, e.Error) {
			return fmt.Errorf("%s: expect.error: unknown category %q (want one of %s)", q.Name, e.Error, strings.Join(ErrorKinds, ", "))
		}
		if e.Count != nil && *e.Count < 0 {
			return fmt.Errorf("%s: expect.count must be non-negative", q.Name)
		}
	}
	return nil
}

// Query converts the entry into a QueryIR query. defaultRef is used by stale
// queries that name no reference of their own.
func (q QuerySpec) Query(defaultRef string) (queryir.Query, error) {
	switch {
	case q.Top != nil:
		return queryir.TopN{
			Entity: q.Top.Entity,
			Metric: q.Top.Metric,
			N:      q.Top.N,
			Order:  queryir.Order(strings.ToLower(q.Top.Order)),
		}, nil

	case q.Join != nil:
		items, err := queryir.ParseItems(q.Join.Project)
		if err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
		kind := queryir.JoinKind(strings.ToLower(q.Join.Kind))
		return queryir.JoinProjection{
			Left:       q.Join.Left,
			Right:      q.Join.Right,
			JoinKey:    q.Join.Key,
			Projection: items,
			Kind:       kind,
		}, nil

	case q.Group != nil:
		having, err := queryir.ParseHaving(q.Group.Having...)
		if err != nil {
			return nil, fmt.Errorf("having: %w", err)
		}
		g := queryir.GroupAggregate{
			Entity:   q.Group.Entity,
			GroupKey: q.Group.By,
			Func:     queryir.AggFunc(strings.ToLower(q.Group.Fn)),
			Measure:  q.Group.Measure,
			Having:   having,
		}
		if q.Group.Rank != nil {
			g.Rank = &queryir.Rank{
				Order: queryir.Order(strings.ToLower(q.Group.Rank.Order)),
				Limit: q.Group.Rank.Limit,
			}
		}
		return g, nil

	case q.Stale != nil:
		ref := q.Stale.Reference
		if ref == "" {
			ref = defaultRef
		}
		t, err := ir.ParseTime(ref)
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		return queryir.StaleFilter{
			Relationship:  q.Stale.Relationship,
			Reference:     t.Std(),
			ThresholdDays: q.Stale.Threshold,
		}, nil
	}
	return nil, fmt.Errorf("%s: no query given", q.Name)
}
