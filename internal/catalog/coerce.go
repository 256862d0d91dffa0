package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/relcat/internal/ir"
)

// Coerce converts a loosely typed inbound value (decoded YAML, CLI text,
// ir.Value) to the Value type of the given column. nil becomes ir.Null;
// nullability is enforced by the loader, not here.
func Coerce(typ ColumnType, raw any) (ir.Value, error) {
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(v) {
		return ir.Null{}, nil
	}
	if Conforms(typ, v) {
		return v, nil
	}

	switch typ {
	case TypeText:
		switch val := v.(type) {
		case ir.Int, ir.Float:
			return ir.String(ir.Format(val)), nil
		}
	case TypeInt:
		switch val := v.(type) {
		case ir.Float:
			if f := float64(val); f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				return ir.Int(int64(f)), nil
			}
			return nil, fmt.Errorf("%v is not an integer", float64(val))
		case ir.String:
			n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", string(val))
			}
			return ir.Int(n), nil
		}
	case TypeReal:
		switch val := v.(type) {
		case ir.Int:
			return ir.Float(float64(val)), nil
		case ir.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%q is not a number", string(val))
			}
			return ir.Float(f), nil
		}
	case TypeTime:
		switch val := v.(type) {
		case ir.String:
			return ir.ParseTime(string(val))
		}
	default:
		return nil, fmt.Errorf("unknown column type %q", typ)
	}
	return nil, fmt.Errorf("cannot use %s as %s", ir.KindOf(v), typ)
}

// Conforms reports whether v already has the Value type of typ.
// Null conforms to every type.
func Conforms(typ ColumnType, v ir.Value) bool {
	if ir.IsNull(v) {
		return true
	}
	switch typ {
	case TypeText:
		_, ok := v.(ir.String)
		return ok
	case TypeInt:
		_, ok := v.(ir.Int)
		return ok
	case TypeReal:
		_, ok := v.(ir.Float)
		return ok
	case TypeTime:
		_, ok := v.(ir.Time)
		return ok
	}
	return false
}

// Decode converts a value scanned from the store to the Value type of typ.
// The driver yields int64, float64, string, []byte, bool or nil.
func Decode(typ ColumnType, raw any) (ir.Value, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if t, ok := raw.(time.Time); ok {
		return ir.NewTime(t), nil
	}
	return Coerce(typ, raw)
}
