package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relcat/internal/catalog"
)

// kindOrder is the order in which table groups are read from a declaration.
// Within a group, tables keep their CUE declaration order.
var kindOrder = []catalog.Kind{
	catalog.KindDimension,
	catalog.KindFact,
	catalog.KindRelationship,
}

// CompileCatalog parses a CUE value into a validated Catalog.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the catalog struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`catalog: bookshop: { ... }`)
//	c, err := CompileCatalog(v.LookupPath(cue.ParsePath("catalog.bookshop")))
func CompileCatalog(v cue.Value) (*catalog.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "catalog", Message: "catalog not found"}
	}

	var name string
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	var tables []catalog.Table
	for _, kind := range kindOrder {
		group := v.LookupPath(cue.ParsePath(string(kind)))
		if !group.Exists() {
			continue
		}
		iter, err := group.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			table, err := parseTable(kind, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			tables = append(tables, table)
		}
	}

	c, err := catalog.New(name, tables...)
	if err != nil {
		var serr *catalog.SchemaError
		if errors.As(err, &serr) {
			field := serr.Table
			if serr.Column != "" {
				field += "." + serr.Column
			}
			return nil, &CompileError{Field: field, Message: serr.Message, Pos: v.Pos(), Err: err}
		}
		return nil, err
	}
	return c, nil
}

// parseTable reads one table declaration.
func parseTable(kind catalog.Kind, name string, v cue.Value) (catalog.Table, error) {
	t := catalog.Table{Name: name, Kind: kind}
	path := fmt.Sprintf("%s.%s", kind, name)

	var err error
	if t.Key, err = optionalString(v, "key"); err != nil {
		return t, err
	}
	if t.Label, err = optionalString(v, "label"); err != nil {
		return t, err
	}
	if t.SQLName, err = optionalString(v, "table"); err != nil {
		return t, err
	}

	signed := map[string]bool{}
	if sv := v.LookupPath(cue.ParsePath("signed")); sv.Exists() {
		iter, err := sv.List()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			col, err := iter.Value().String()
			if err != nil {
				return t, formatCUEError(err)
			}
			signed[col] = true
		}
	}

	if fv := v.LookupPath(cue.ParsePath("fields")); fv.Exists() {
		iter, err := fv.Fields()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			decl, err := iter.Value().String()
			if err != nil {
				return t, &CompileError{
					Field:   path + ".fields." + iter.Label(),
					Message: "field type must be a string such as \"text\" or \"real?\"",
					Pos:     iter.Value().Pos(),
				}
			}
			typ, nullable := splitNullable(decl)
			if !catalog.ColumnType(typ).Valid() {
				return t, &CompileError{
					Field:   path + ".fields." + iter.Label(),
					Message: fmt.Sprintf("unknown type %q (want text, int, real or time)", typ),
					Pos:     iter.Value().Pos(),
				}
			}
			col := iter.Label()
			t.Columns = append(t.Columns, catalog.Column{
				Name:     col,
				Type:     catalog.ColumnType(typ),
				Nullable: nullable,
				Signed:   signed[col],
			})
			delete(signed, col)
		}
	}
	for col := range signed {
		return t, &CompileError{
			Field:   path + ".signed",
			Message: fmt.Sprintf("unknown column %q", col),
			Pos:     v.Pos(),
		}
	}

	if lv := v.LookupPath(cue.ParsePath("links")); lv.Exists() {
		iter, err := lv.Fields()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			target, err := iter.Value().String()
			if err != nil {
				return t, &CompileError{
					Field:   path + ".links." + iter.Label(),
					Message: "link target must be a table name",
					Pos:     iter.Value().Pos(),
				}
			}
			target, nullable := splitNullable(target)
			t.Links = append(t.Links, catalog.Link{Column: iter.Label(), Target: target, Nullable: nullable})
		}
	}

	if sv := v.LookupPath(cue.ParsePath("span")); sv.Exists() {
		start, err := requiredString(sv, "start", path+".span")
		if err != nil {
			return t, err
		}
		end, err := requiredString(sv, "end", path+".span")
		if err != nil {
			return t, err
		}
		t.Span = &catalog.Span{Start: start, End: end}
	}

	if uv := v.LookupPath(cue.ParsePath("unique")); uv.Exists() {
		unique, err := uv.Bool()
		if err != nil {
			return t, formatCUEError(err)
		}
		t.Unique = unique
	}

	return t, nil
}

// splitNullable strips a trailing "?" marking a nullable declaration.
func splitNullable(decl string) (string, bool) {
	decl = strings.TrimSpace(decl)
	if s, ok := strings.CutSuffix(decl, "?"); ok {
		return s, true
	}
	return decl, false
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredString(v cue.Value, field, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   path + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
// Err holds the underlying catalog error when declaration checks failed.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying catalog error, if any.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
