// Package report encodes query results for output: aligned text, TSV,
// JSON and msgpack. It makes no assumption about the destination.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/querysql"
	"github.com/roach88/relcat/internal/store"
)

// Format is an output encoding.
type Format string

const (
	Text    Format = "text"
	TSV     Format = "tsv"
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

// Formats lists the supported formats.
var Formats = []Format{Text, TSV, JSON, MsgPack}

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("invalid format %q: must be one of %v", s, Formats)
	}
	return f, nil
}

// Document is the structured form written by the JSON and msgpack
// encoders. Rows hold plain Go values in column order.
type Document struct {
	Columns []querysql.Column `json:"columns" msgpack:"columns"`
	Rows    [][]any           `json:"rows" msgpack:"rows"`
}

// NewDocument converts a result to its structured form.
func NewDocument(r *query.Result) Document {
	doc := Document{Columns: r.Columns, Rows: make([][]any, len(r.Rows))}
	for i, row := range r.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = ir.Native(v)
		}
		doc.Rows[i] = out
	}
	return doc
}

// Write encodes r to w in format f.
func Write(w io.Writer, r *query.Result, f Format) error {
	switch f {
	case Text:
		return writeText(w, r)
	case TSV:
		return writeTSV(w, r)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(r))
	case MsgPack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(NewDocument(r))
	default:
		return fmt.Errorf("invalid format %q", f)
	}
}

// writeText renders an aligned table. Nulls render as "-".
func writeText(w io.Writer, r *query.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if ir.IsNull(v) {
				cells[i] = "-"
				continue
			}
			cells[i] = cell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(r.Rows))
	return err
}

// writeTSV writes a header line and one line per row. Nulls are empty.
func writeTSV(w io.Writer, r *query.Result) error {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	if _, err := fmt.Fprintln(w, strings.Join(names, "\t")); err != nil {
		return err
	}

	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cell(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// cell formats one value on a single line.
func cell(v ir.Value) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(ir.Format(v))
}

// FromTable converts a full table read into a result for output.
func FromTable(t *store.TableRows) *query.Result {
	r := &query.Result{
		Columns: make([]querysql.Column, len(t.Columns)),
		Rows:    make([]query.Row, len(t.Rows)),
	}
	for i, name := range t.Columns {
		typ := catalog.TypeText
		if i < len(t.Types) {
			typ = t.Types[i]
		}
		r.Columns[i] = querysql.Column{Name: name, Type: typ}
	}
	for i, row := range t.Rows {
		r.Rows[i] = row
	}
	return r
}
