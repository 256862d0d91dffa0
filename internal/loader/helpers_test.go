package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/catalogs"
	"github.com/roach88/relcat/internal/store"
)

// newTestLoader opens a file-backed store with the schema of a builtin
// catalog and returns a loader over it.
func newTestLoader(t *testing.T, name string, ids ...string) (*Loader, *store.Store) {
	t.Helper()

	c, err := catalogs.Load(name)
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateSchema(context.Background(), c)
	require.NoError(t, err)

	var opts []Option
	if len(ids) > 0 {
		opts = append(opts, WithIDGenerator(NewFixedGenerator(ids...)))
	}
	return New(s, c, opts...), s
}

func count(t *testing.T, s *store.Store, c *catalog.Catalog, table string) int64 {
	t.Helper()
	tbl, err := c.Lookup(table)
	require.NoError(t, err)
	n, err := s.Count(context.Background(), tbl)
	require.NoError(t, err)
	return n
}

// libraryBatch is a small consistent library batch.
func libraryBatch() Batch {
	return Batch{
		Dimensions: []DimensionRow{
			{Table: "genre", Key: "Drama"},
			{Table: "membership_status", Key: "active"},
		},
		Facts: []FactRow{
			{
				Table:  "book",
				Handle: "hamlet",
				Values: map[string]any{"title": "Hamlet", "author": "Shakespeare", "year": 1603},
				Links:  map[string]Ref{"genre_id": Key("Drama")},
			},
			{
				Table:  "book",
				Handle: "faust",
				Values: map[string]any{"title": "Faust", "author": "Goethe", "year": "1808"},
				Links:  map[string]Ref{"genre_id": Key("Tragedy")},
			},
			{
				Table:  "reader",
				Handle: "ann",
				Values: map[string]any{"full_name": "Ann Lee", "contact": "ann@example.org"},
				Links:  map[string]Ref{"membership_status_id": Key("active")},
			},
		},
		Relationships: []RelationshipRow{
			{
				Table:  "book_issue",
				Values: map[string]any{"issue_date": "2024-01-10", "return_date": "2024-02-01"},
				Links:  map[string]Ref{"book_id": Handle("hamlet"), "reader_id": Handle("ann")},
			},
			{
				Table:  "book_issue",
				Values: map[string]any{"issue_date": "2024-03-01"},
				Links:  map[string]Ref{"book_id": Handle("faust"), "reader_id": Handle("ann")},
			},
		},
	}
}
