package queryir

import (
	"strings"
	"time"

	"github.com/roach88/relcat/internal/ir"
)

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition on an aggregate value.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: aggregate <op> literal
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// JoinKind selects inner or left-outer join semantics.
type JoinKind string

const (
	Inner     JoinKind = "inner"
	LeftOuter JoinKind = "left"
)

// AggFunc is an aggregate function.
type AggFunc string

const (
	Count AggFunc = "count"
	Sum   AggFunc = "sum"
	Avg   AggFunc = "avg"
	Max   AggFunc = "max"
)

// Valid reports whether f is a known aggregate function.
func (f AggFunc) Valid() bool {
	switch f {
	case Count, Sum, Avg, Max:
		return true
	}
	return false
}

// Side selects the table a projection item reads from.
type Side string

const (
	SideAuto  Side = ""      // Plain items: left first, then right. Aggregates: right
	SideLeft  Side = "left"  // Left entity of a join
	SideRight Side = "right" // Right entity of a join
)

// TopN ranks the rows of one entity by a metric.
//
// Semantics:
//
//	SELECT id, <columns>, <linked labels> FROM <entity>
//	WHERE <metric> IS NOT NULL
//	ORDER BY <metric> <order>, id ASC
//	LIMIT <n>
//
// Every link of the entity is joined to its target, and the target's
// natural key (dimensions) or label (facts) is projected under the link
// name without its "_id" suffix.
type TopN struct {
	Entity string
	Metric string
	N      int
	Order  Order // Defaults to Desc
}

func (TopN) queryNode() {}

// Item is one output column of a JoinProjection: a plain column of either
// side, or an aggregate over one side.
//
// Example:
//
//	Item{Column: "name"}                          // left.name (or right.name)
//	Item{Func: Count, Column: "*", As: "books"}   // COUNT of matched right rows
//	Item{Func: Sum, Side: SideRight, Column: "price"}
type Item struct {
	Side   Side
	Column string  // Column name, or "*" with Count
	Func   AggFunc // Empty for a plain column
	As     string  // Output name; defaults to column or func_column
}

// Aggregate reports whether the item is an aggregate.
func (it Item) Aggregate() bool {
	return it.Func != ""
}

// Name returns the output column name of the item.
func (it Item) Name() string {
	switch {
	case it.As != "":
		return it.As
	case !it.Aggregate():
		return it.Column
	case it.Column == "" || it.Column == "*":
		return string(it.Func)
	default:
		return string(it.Func) + "_" + it.Column
	}
}

// JoinProjection equi-joins two entities along a link.
//
// Semantics:
//
//	SELECT <projection> FROM <left> [LEFT] JOIN <right> ON <link> = id
//	[GROUP BY left.id]
//	ORDER BY left.id ASC[, right.id ASC]
//
// JoinKey names the link column connecting the two entities (on either
// side); it may be empty when exactly one link connects them. When the
// projection contains aggregates, rows group by the left row and plain
// items must come from the left side. Under LeftOuter, unmatched left
// rows report count 0 and sum 0; avg and max are null.
type JoinProjection struct {
	Left       string
	Right      string
	JoinKey    string
	Projection []Item
	Kind       JoinKind // Defaults to Inner
}

func (JoinProjection) queryNode() {}

// Rank orders aggregate groups by their aggregate value, ties broken by
// group key, and optionally keeps only the first Limit groups.
type Rank struct {
	Order Order
	Limit int // 0 keeps every group
}

// GroupAggregate groups the rows of one entity and aggregates a measure.
//
// Semantics:
//
//	SELECT <group label>, <fn>(<measure>) FROM <entity>
//	GROUP BY <group key>
//	HAVING <having>
//	ORDER BY <group label>, <group key>
//
// GroupKey is a column or a link column. Grouping by a link groups by the
// referenced row and labels each group with the target's natural key or
// label. An empty GroupKey aggregates every row into one global group.
// Measure may be empty with Count to count rows.
//
// GroupKey and Measure may also follow one link as "link.column", reading
// the column from the linked row:
//
//	GroupAggregate{Entity: "order_dish", GroupKey: "order_id.table_id", Func: Sum, Measure: "dish_id.price"}
type GroupAggregate struct {
	Entity   string
	GroupKey string
	Func     AggFunc
	Measure  string
	Having   Predicate // nil = no filter
	Rank     *Rank     // nil = order by group key
}

func (GroupAggregate) queryNode() {}

// SplitPath splits "link.column" into its link and column. A plain column
// name returns an empty link.
func SplitPath(name string) (link, column string) {
	link, column, ok := strings.Cut(name, ".")
	if !ok {
		return "", name
	}
	return link, column
}

// StaleFilter selects open relationship rows (span end absent) whose
// start lies more than ThresholdDays before Reference.
//
// Semantics:
//
//	SELECT ... FROM <relationship>
//	WHERE <end> IS NULL AND julianday(<reference>) - julianday(<start>) > <threshold>
//	ORDER BY <start> ASC, id ASC
//
// Reference is always supplied by the caller so results do not depend on
// the wall clock.
type StaleFilter struct {
	Relationship  string
	Reference     time.Time
	ThresholdDays float64
}

func (StaleFilter) queryNode() {}

// CompareOp is a comparison operator.
type CompareOp string

const (
	Eq CompareOp = "="
	Ne CompareOp = "!="
	Lt CompareOp = "<"
	Le CompareOp = "<="
	Gt CompareOp = ">"
	Ge CompareOp = ">="
)

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	switch op {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

// Compare compares the aggregate of a GroupAggregate with a literal.
//
// Example:
//
//	Compare{Op: Ge, Value: ir.Int(2)}   // HAVING count >= 2
type Compare struct {
	Op    CompareOp
	Value ir.Value
}

func (Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
