package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/testutil"
)

const libraryFixture = `batches:
  - name: catalogue
    dimensions:
      - { table: genre, key: Drama }
      - { table: membership_status, key: active }
    facts:
      - table: book
        handle: hamlet
        values: { title: Hamlet, author: Shakespeare, year: 1603 }
        links: { genre_id: Drama }
      - table: book
        handle: faust
        values: { title: Faust, author: Goethe, year: 1808 }
        links: { genre_id: Tragedy }
      - table: book
        values: { title: Lear, author: Shakespeare, year: 1606 }
        links: { genre_id: Drama }
      - table: reader
        handle: ann
        values: { full_name: Ann Lee, contact: ann@example.org }
        links: { membership_status_id: active }
    relationships:
      - table: book_issue
        values: { issue_date: "2024-01-10" }
        links: { book_id: "@hamlet", reader_id: "@ann" }
      - table: book_issue
        values: { issue_date: "2024-02-20", return_date: "2024-02-25" }
        links: { book_id: "@hamlet", reader_id: "@ann" }
      - table: book_issue
        values: { issue_date: "2024-02-15" }
        links: { book_id: "@faust", reader_id: "@ann" }
`

const danglingFixture = `batches:
  - name: returns
    dimensions:
      - { table: genre, key: Poetry }
  - name: dangling
    relationships:
      - table: book_issue
        values: { issue_date: "2024-02-01" }
        links: { book_id: "#99", reader_id: "#1" }
`

// cliEnv is a temporary database plus the clock the commands see.
type cliEnv struct {
	t     *testing.T
	dir   string
	db    string
	clock *testutil.FixedClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		t:     t,
		dir:   dir,
		db:    filepath.Join(dir, "relcat.db"),
		clock: testutil.NewFixedClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// run executes the root command with --db pointing at the env database.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Now: e.clock.Now})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// write creates a file under the env directory and returns its path.
func (e *cliEnv) write(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// loadLibrary loads libraryFixture into the env database.
func (e *cliEnv) loadLibrary() {
	e.t.Helper()
	_, _, err := e.run("load", e.write("library.yaml", libraryFixture))
	require.NoError(e.t, err)
}

// decodeResponse parses a JSON CLIResponse and re-decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return raw.CLIResponse
}

// document mirrors report.Document for decoding JSON output.
type document struct {
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Rows [][]any `json:"rows"`
}

func (d document) column(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
