package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/relcat/internal/catalog"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testCatalog returns a small library-shaped catalog covering every kind.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("library",
		catalog.Table{Name: "genre", Kind: catalog.KindDimension, Key: "name"},
		catalog.Table{
			Name:  "book",
			Kind:  catalog.KindFact,
			Label: "title",
			Columns: []catalog.Column{
				{Name: "title", Type: catalog.TypeText},
				{Name: "year", Type: catalog.TypeInt},
				{Name: "rating", Type: catalog.TypeReal, Nullable: true},
			},
			Links: []catalog.Link{{Column: "genre_id", Target: "genre"}},
		},
		catalog.Table{Name: "reader", Kind: catalog.KindDimension, Key: "name"},
		catalog.Table{
			Name: "book_issue",
			Kind: catalog.KindRelationship,
			Columns: []catalog.Column{
				{Name: "issue_date", Type: catalog.TypeTime},
				{Name: "return_date", Type: catalog.TypeTime, Nullable: true},
			},
			Links: []catalog.Link{
				{Column: "book_id", Target: "book"},
				{Column: "reader_id", Target: "reader"},
			},
			Span: &catalog.Span{Start: "issue_date", End: "return_date"},
		},
	)
	if err != nil {
		t.Fatalf("catalog.New() failed: %v", err)
	}
	return c
}

// mustTable returns a catalog table or fails the test.
func mustTable(t *testing.T, c *catalog.Catalog, name string) *catalog.Table {
	t.Helper()
	tbl, ok := c.Table(name)
	if !ok {
		t.Fatalf("table %q not declared", name)
	}
	return tbl
}

// resolveKeyTx resolves a natural key in a transaction of its own.
func resolveKeyTx(ctx context.Context, s *Store, table *catalog.Table, key string) (int64, bool, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	id, created, err := tx.ResolveKey(ctx, table, key, nil)
	if err != nil {
		return 0, false, err
	}
	return id, created, tx.Commit()
}
