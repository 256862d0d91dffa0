package loader

import (
	"fmt"
	"strconv"
	"strings"
)

// refKind distinguishes the three ways a link can name its target.
type refKind uint8

const (
	refNone refKind = iota
	refKey
	refHandle
	refID
)

// Ref names the target row of a link: a dimension's natural key, the
// handle of a fact loaded earlier in the same batch, or an existing id.
type Ref struct {
	kind  refKind
	value string
	id    int64
}

// Key references a dimension row by natural key.
func Key(key string) Ref {
	return Ref{kind: refKey, value: key}
}

// Handle references a fact row declared earlier in the same batch.
func Handle(handle string) Ref {
	return Ref{kind: refHandle, value: handle}
}

// ID references an existing row by id.
func ID(id int64) Ref {
	return Ref{kind: refID, id: id}
}

// ParseRef reads the text form of a reference: "@handle", "#id", or a
// natural key. "#" followed by anything but digits is a natural key.
func ParseRef(s string) Ref {
	switch {
	case strings.HasPrefix(s, "@") && len(s) > 1:
		return Handle(s[1:])
	case strings.HasPrefix(s, "#"):
		if id, err := strconv.ParseInt(s[1:], 10, 64); err == nil && id > 0 {
			return ID(id)
		}
	}
	return Key(s)
}

// IsZero reports whether r is the zero Ref (no target).
func (r Ref) IsZero() bool {
	return r.kind == refNone
}

// String returns the text form accepted by ParseRef.
func (r Ref) String() string {
	switch r.kind {
	case refKey:
		return r.value
	case refHandle:
		return "@" + r.value
	case refID:
		return fmt.Sprintf("#%d", r.id)
	default:
		return ""
	}
}

// DimensionRow is an inbound dimension row: a natural key plus attributes.
// Attribute values are loosely typed and coerced to the column type.
type DimensionRow struct {
	Table string
	Key   string
	Attrs map[string]any
}

// FactRow is an inbound fact row. Handle optionally names the row so later
// rows of the same batch can link to it.
type FactRow struct {
	Table  string
	Handle string
	Values map[string]any
	Links  map[string]Ref
}

// RelationshipRow is an inbound relationship row.
type RelationshipRow struct {
	Table  string
	Values map[string]any
	Links  map[string]Ref
}

// Batch is a unit of loading: dimension rows, then fact rows, then
// relationship rows, all committed or rolled back together.
type Batch struct {
	Dimensions    []DimensionRow
	Facts         []FactRow
	Relationships []RelationshipRow
}

// Len returns the total number of rows in the batch.
func (b Batch) Len() int {
	return len(b.Dimensions) + len(b.Facts) + len(b.Relationships)
}

// BatchResult summarizes a committed batch.
type BatchResult struct {
	ID                string           `json:"id"`
	Hash              string           `json:"hash"`
	DimensionsCreated int              `json:"dimensions_created"`
	DimensionsReused  int              `json:"dimensions_reused"`
	Facts             int              `json:"facts"`
	Relationships     int              `json:"relationships"`
	Handles           map[string]int64 `json:"handles,omitempty"`
}
