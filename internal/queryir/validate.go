package queryir

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

// Validate checks the parameters of a query that do not depend on a
// catalog. It returns a *catalog.ValidationError describing the first
// problem found, or nil.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	switch query := q.(type) {
	case TopN:
		return validateTopN(query)
	case *TopN:
		return validateTopN(*query)
	case JoinProjection:
		return validateJoin(query)
	case *JoinProjection:
		return validateJoin(*query)
	case GroupAggregate:
		return validateGroup(query)
	case *GroupAggregate:
		return validateGroup(*query)
	case StaleFilter:
		return validateStale(query)
	case *StaleFilter:
		return validateStale(*query)
	case nil:
		return invalid("", "nil query")
	default:
		return invalid("", "unknown query type %T", q)
	}
}

func invalid(field, format string, args ...any) error {
	return &catalog.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func validateOrder(field string, o Order) error {
	switch o {
	case "", Asc, Desc:
		return nil
	}
	return invalid(field, "unknown order %q (want asc or desc)", o)
}

func validateTopN(q TopN) error {
	if q.Entity == "" {
		return invalid("entity", "entity is required")
	}
	if q.Metric == "" {
		return invalid("metric", "metric is required")
	}
	if q.N <= 0 {
		return invalid("n", "must be positive, got %d", q.N)
	}
	return validateOrder("order", q.Order)
}

func validateJoin(q JoinProjection) error {
	if q.Left == "" || q.Right == "" {
		return invalid("entity", "left and right entities are required")
	}
	switch q.Kind {
	case "", Inner, LeftOuter:
	default:
		return invalid("kind", "unknown join kind %q (want inner or left)", q.Kind)
	}
	if len(q.Projection) == 0 {
		return invalid("projection", "projection is empty")
	}

	names := make(map[string]bool, len(q.Projection))
	for _, it := range q.Projection {
		switch it.Side {
		case SideAuto, SideLeft, SideRight:
		default:
			return invalid("projection", "unknown side %q", it.Side)
		}
		if it.Aggregate() {
			if err := validateAggregate("projection", it.Func, it.Column); err != nil {
				return err
			}
		} else if it.Column == "" || it.Column == "*" {
			return invalid("projection", "plain item needs a column")
		}
		name := it.Name()
		if names[name] {
			return invalid("projection", "duplicate output column %q", name)
		}
		names[name] = true
	}
	return nil
}

// validateAggregate checks fn and its measure. "*" and "" are allowed
// with count only.
func validateAggregate(field string, fn AggFunc, measure string) error {
	if !fn.Valid() {
		return invalid(field, "unknown aggregate function %q (want count, sum, avg or max)", fn)
	}
	if fn != Count && (measure == "" || measure == "*") {
		return invalid(field, "%s needs a measure column", fn)
	}
	return nil
}

func validateGroup(q GroupAggregate) error {
	if q.Entity == "" {
		return invalid("entity", "entity is required")
	}
	if err := validatePath("group", q.GroupKey); err != nil {
		return err
	}
	if err := validateAggregate("fn", q.Func, q.Measure); err != nil {
		return err
	}
	if q.Measure != "*" {
		if err := validatePath("measure", q.Measure); err != nil {
			return err
		}
	}
	if err := validatePredicate(q.Having); err != nil {
		return err
	}
	if q.Rank != nil {
		if q.GroupKey == "" {
			return invalid("rank", "ranking needs a group key")
		}
		if err := validateOrder("rank", q.Rank.Order); err != nil {
			return err
		}
		if q.Rank.Limit < 0 {
			return invalid("rank", "limit must not be negative, got %d", q.Rank.Limit)
		}
	}
	return nil
}

// validatePath accepts "", a column name, or one "link.column" hop.
func validatePath(field, name string) error {
	if !strings.Contains(name, ".") {
		return nil
	}
	link, column := SplitPath(name)
	if link == "" || column == "" || strings.Contains(column, ".") {
		return invalid(field, "%q must be a column or link.column", name)
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Compare:
		return validateCompare(pred)
	case *Compare:
		return validateCompare(*pred)
	case And:
		return validateAnd(pred)
	case *And:
		return validateAnd(*pred)
	default:
		return invalid("having", "unknown predicate type %T", p)
	}
}

func validateCompare(c Compare) error {
	if !c.Op.Valid() {
		return invalid("having", "unknown operator %q", c.Op)
	}
	if _, ok := ir.Number(c.Value); !ok {
		return invalid("having", "aggregate compared to non-number %s", ir.KindOf(c.Value))
	}
	return nil
}

func validateAnd(and And) error {
	for _, sub := range and.Predicates {
		if err := validatePredicate(sub); err != nil {
			return err
		}
	}
	return nil
}

func validateStale(q StaleFilter) error {
	if q.Relationship == "" {
		return invalid("relationship", "relationship is required")
	}
	if q.Reference.IsZero() {
		return invalid("reference", "reference time is required")
	}
	if math.IsNaN(q.ThresholdDays) || math.IsInf(q.ThresholdDays, 0) {
		return invalid("threshold", "must be a finite number of days, got %v", q.ThresholdDays)
	}
	if q.ThresholdDays < 0 {
		return invalid("threshold", "must not be negative, got %v", q.ThresholdDays)
	}
	return nil
}
