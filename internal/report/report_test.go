package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/querysql"
	"github.com/roach88/relcat/internal/store"
)

func sampleResult() *query.Result {
	issued, _ := ir.ParseTime("2024-01-10")
	return &query.Result{
		Columns: []querysql.Column{
			{Name: "title", Type: catalog.TypeText},
			{Name: "price", Type: catalog.TypeReal},
			{Name: "issued", Type: catalog.TypeTime},
		},
		Rows: []query.Row{
			{ir.String("Dune"), ir.Float(9.5), issued},
			{ir.String("Emma\tVol 1"), ir.Null{}, ir.Null{}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "TSV", "json", "msgpack"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), TSV))

	want := "title\tprice\tissued\n" +
		"Dune\t9.5\t2024-01-10T00:00:00Z\n" +
		"Emma Vol 1\t\t\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), Text))

	want := "title       price  issued\n" +
		"Dune        9.5    2024-01-10T00:00:00Z\n" +
		"Emma Vol 1  -      -\n" +
		"(2 rows)\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := &query.Result{Columns: []querysql.Column{{Name: "name", Type: catalog.TypeText}}, Rows: []query.Row{}}
	require.NoError(t, Write(&buf, r, Text))
	assert.Equal(t, "name\n(no rows)\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), JSON))

	var doc struct {
		Columns []querysql.Column `json:"columns"`
		Rows    [][]any           `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "price", doc.Columns[1].Name)
	assert.Equal(t, catalog.TypeReal, doc.Columns[1].Type)
	assert.Equal(t, []any{"Dune", 9.5, "2024-01-10T00:00:00Z"}, doc.Rows[0])
	assert.Nil(t, doc.Rows[1][1])
}

func TestWriteMsgPack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), MsgPack))

	var doc map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &doc))
	rows, ok := doc["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)

	first := rows[0].([]any)
	assert.Equal(t, "Dune", first[0])
	assert.Equal(t, 9.5, first[1])
	issued, ok := first[2].(time.Time)
	require.True(t, ok, "times keep their type")
	assert.True(t, issued.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
}

func TestWriteInvalidFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleResult(), Format("xml")))
}

func TestFromTable(t *testing.T) {
	r := FromTable(&store.TableRows{
		Columns: []string{"id", "name"},
		Types:   []catalog.ColumnType{catalog.TypeInt, catalog.TypeText},
		Rows:    [][]ir.Value{{ir.Int(1), ir.String("Drama")}},
	})
	assert.Equal(t, "name", r.Columns[1].Name)
	assert.Equal(t, catalog.TypeText, r.Columns[1].Type)
	assert.Equal(t, query.Row{ir.Int(1), ir.String("Drama")}, r.Rows[0])
}
