package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relcat/internal/catalog"
)

// Diagnostic codes (E100-E199 errors, W200-W299 warnings)
const (
	// Declaration errors (E100-E109)
	ErrDeclaration     = "E100" // declaration rejected by catalog checks
	ErrUnknownType     = "E101" // field type is not text, int, real or time
	ErrUnknownTarget   = "E102" // link target not declared earlier
	ErrSpanColumns     = "E103" // span start/end columns malformed
	ErrMissingKey      = "E104" // dimension without natural key
	ErrTooFewLinks     = "E105" // relationship with fewer than two links
	ErrCUE             = "E106" // CUE evaluation error
	ErrUnknownDiagCode = "E199" // uncategorized

	// Advisory warnings (W200-W209)
	WarnUnreferenced  = "W200" // dimension not linked by any table
	WarnNoLabel       = "W201" // fact without a label column
	WarnEagerRequired = "W202" // dimension cannot be created from its key alone
	WarnDuplicateLink = "W203" // relationship allows duplicate link tuples
)

// Diagnostic is a single finding about a catalog declaration.
type Diagnostic struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", d.Code, d.Line, d.Field, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Field, d.Message)
}

// IsWarning reports whether the diagnostic is advisory.
func (d Diagnostic) IsWarning() bool {
	return len(d.Code) > 0 && d.Code[0] == 'W'
}

// Lint reports advisory findings on a compiled catalog.
// Returns all findings (does not fail-fast), in table declaration order.
func Lint(c *catalog.Catalog) []Diagnostic {
	var out []Diagnostic

	linked := make(map[string]bool)
	for _, t := range c.Tables {
		for _, l := range t.Links {
			linked[l.Target] = true
		}
	}

	for _, t := range c.Tables {
		field := fmt.Sprintf("%s.%s", t.Kind, t.Name)
		switch t.Kind {
		case catalog.KindDimension:
			if !linked[t.Name] {
				out = append(out, Diagnostic{
					Field:   field,
					Message: "dimension is not linked by any table",
					Code:    WarnUnreferenced,
				})
			}
			if req := t.Required(); len(req) > 0 {
				out = append(out, Diagnostic{
					Field:   field,
					Message: fmt.Sprintf("links naming an absent key will not create rows (required: %v)", req),
					Code:    WarnEagerRequired,
				})
			}
		case catalog.KindFact:
			if t.Label == "" {
				out = append(out, Diagnostic{
					Field:   field,
					Message: "fact has no label; joined output shows ids only",
					Code:    WarnNoLabel,
				})
			}
		case catalog.KindRelationship:
			if !t.Unique && t.Span == nil {
				out = append(out, Diagnostic{
					Field:   field,
					Message: "relationship without span or unique allows duplicate link tuples",
					Code:    WarnDuplicateLink,
				})
			}
		}
	}
	return out
}

// DiagnosticFor converts a compile or load error into a Diagnostic.
func DiagnosticFor(err error) Diagnostic {
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		return Diagnostic{Field: "catalog", Message: err.Error(), Code: ErrUnknownDiagCode}
	}

	d := Diagnostic{Field: cerr.Field, Message: cerr.Message, Code: codeFor(cerr)}
	if cerr.Pos.IsValid() {
		d.Line = cerr.Pos.Line()
	}
	return d
}

// codeFor maps a compile error to a diagnostic code.
func codeFor(e *CompileError) string {
	if e.Field == "cue" {
		return ErrCUE
	}
	switch {
	case containsAny(e.Message, "must be declared before"):
		return ErrUnknownTarget
	case containsAny(e.Message, "span start", "span end"):
		return ErrSpanColumns
	case containsAny(e.Message, "natural key"):
		return ErrMissingKey
	case containsAny(e.Message, "at least two links"):
		return ErrTooFewLinks
	case containsAny(e.Message, "unknown type"):
		return ErrUnknownType
	default:
		return ErrDeclaration
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
