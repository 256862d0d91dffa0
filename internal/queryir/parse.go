package queryir

import (
	"strconv"
	"strings"

	"github.com/roach88/relcat/internal/ir"
)

// ParseItem reads the text form of a projection item:
//
//	name            plain column, side resolved by the backend
//	right.name      plain column of one side
//	count(*)        aggregate; the side defaults to right
//	sum(price)      aggregate over a column
//	avg(right.price) as mean
func ParseItem(s string) (Item, error) {
	var it Item
	s = strings.TrimSpace(s)

	if i := strings.LastIndex(strings.ToLower(s), " as "); i > 0 {
		it.As = strings.TrimSpace(s[i+4:])
		s = strings.TrimSpace(s[:i])
	}

	if open := strings.IndexByte(s, '('); open > 0 && strings.HasSuffix(s, ")") {
		it.Func = AggFunc(strings.ToLower(strings.TrimSpace(s[:open])))
		s = strings.TrimSpace(s[open+1 : len(s)-1])
		if !it.Func.Valid() {
			return Item{}, invalid("projection", "unknown aggregate function %q", it.Func)
		}
		it.Side = SideRight
	}

	if side, col, ok := strings.Cut(s, "."); ok {
		switch Side(side) {
		case SideLeft, SideRight:
			it.Side = Side(side)
		default:
			return Item{}, invalid("projection", "unknown side %q (want left or right)", side)
		}
		s = col
	}
	it.Column = s

	if it.Aggregate() {
		if err := validateAggregate("projection", it.Func, it.Column); err != nil {
			return Item{}, err
		}
	} else if it.Column == "" || it.Column == "*" {
		return Item{}, invalid("projection", "plain item needs a column")
	}
	return it, nil
}

// ParseItems parses a comma-separated projection.
func ParseItems(s string) ([]Item, error) {
	var items []Item
	for _, part := range splitTopLevel(s) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		it, err := ParseItem(part)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// compareOps lists operators longest first so ">=" wins over ">".
var compareOps = []CompareOp{Ge, Le, Ne, Eq, Gt, Lt}

// ParseCompare reads a comparison such as ">= 2" or "<10.5".
func ParseCompare(s string) (Compare, error) {
	s = strings.TrimSpace(s)
	for _, op := range compareOps {
		rest, ok := strings.CutPrefix(s, string(op))
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if n, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return Compare{Op: op, Value: ir.Int(n)}, nil
		}
		if f, err := strconv.ParseFloat(rest, 64); err == nil {
			return Compare{Op: op, Value: ir.Float(f)}, nil
		}
		return Compare{}, invalid("having", "%q is not a number", rest)
	}
	return Compare{}, invalid("having", "%q has no comparison operator", s)
}

// ParseHaving parses one or more comparisons into a predicate.
// No comparisons yields nil; one yields the Compare itself.
func ParseHaving(exprs ...string) (Predicate, error) {
	var preds []Predicate
	for _, e := range exprs {
		if strings.TrimSpace(e) == "" {
			continue
		}
		c, err := ParseCompare(e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, c)
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return And{Predicates: preds}, nil
	}
}
