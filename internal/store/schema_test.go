package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
)

func TestCreateSchema_CreatesInDeclarationOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	report, err := s.CreateSchema(ctx, testCatalog(t))
	if err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	want := []string{"genres", "books", "readers", "book_issues"}
	if strings.Join(report.Created, ",") != strings.Join(want, ",") {
		t.Errorf("Created = %v, want %v", report.Created, want)
	}
	if len(report.Verified) != 0 {
		t.Errorf("Verified = %v, want none", report.Verified)
	}

	// One index per link column
	var n int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`).Scan(&n)
	if err != nil {
		t.Fatalf("count indexes: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d link indexes, want 3", n)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := testCatalog(t)

	if _, err := s.CreateSchema(ctx, c); err != nil {
		t.Fatalf("first CreateSchema() failed: %v", err)
	}
	if _, _, err := resolveKeyTx(ctx, s, mustTable(t, c, "genre"), "Drama"); err != nil {
		t.Fatalf("ResolveKey() failed: %v", err)
	}

	report, err := s.CreateSchema(ctx, c)
	if err != nil {
		t.Fatalf("second CreateSchema() failed: %v", err)
	}
	if len(report.Created) != 0 {
		t.Errorf("second call created %v", report.Created)
	}
	if len(report.Verified) != 4 {
		t.Errorf("Verified = %v, want all 4 tables", report.Verified)
	}

	// Existing rows untouched
	n, err := s.Count(ctx, mustTable(t, c, "genre"))
	if err != nil || n != 1 {
		t.Errorf("Count(genre) = %d, %v; want 1, nil", n, err)
	}
}

func TestVerifySchema_CreatesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := testCatalog(t)

	_, err := s.VerifySchema(ctx, c)
	if !catalog.IsSchemaError(err) {
		t.Fatalf("VerifySchema() on empty store error = %v, want SchemaError", err)
	}
	if !strings.Contains(err.Error(), "genres") {
		t.Errorf("error %q should name the first missing table", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		t.Fatalf("count objects: %v", err)
	}
	if n != 0 {
		t.Errorf("VerifySchema() left %d schema objects, want 0", n)
	}

	if _, err := s.CreateSchema(ctx, c); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	report, err := s.VerifySchema(ctx, c)
	if err != nil {
		t.Fatalf("VerifySchema() after CreateSchema failed: %v", err)
	}
	if len(report.Verified) != 4 || len(report.Created) != 0 {
		t.Errorf("report = %+v, want 4 verified and none created", report)
	}
}

func TestVerifySchema_DetectsMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.db.Exec(`CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := s.VerifySchema(ctx, testCatalog(t))
	if !catalog.IsSchemaError(err) {
		t.Fatalf("VerifySchema() error = %v, want SchemaError", err)
	}
	if !strings.Contains(err.Error(), "UNIQUE") {
		t.Errorf("error %q should report the missing unique key", err)
	}
}

func TestCreateSchema_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		ddl     string
		column  string
		message string
	}{
		{
			name:    "missing column",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY)`,
			column:  "name",
			message: "missing",
		},
		{
			name:    "extra column",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, color TEXT)`,
			column:  "color",
			message: "not declared",
		},
		{
			name:    "type mismatch",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY, name INTEGER NOT NULL UNIQUE)`,
			column:  "name",
			message: "type INTEGER in store",
		},
		{
			name:    "nullability mismatch",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`,
			column:  "name",
			message: "nullability",
		},
		{
			name:    "natural key not unique",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
			column:  "name",
			message: "no UNIQUE constraint",
		},
		{
			name:    "natural key unique on another column set",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL, UNIQUE (id, name))`,
			column:  "name",
			message: "no UNIQUE constraint",
		},
		{
			name:    "missing check",
			ddl:     `CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)`,
			column:  "name",
			message: "no CHECK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			if _, err := s.db.Exec(tt.ddl); err != nil {
				t.Fatalf("setup: %v", err)
			}

			report, err := s.CreateSchema(context.Background(), testCatalog(t))
			if err == nil {
				t.Fatal("CreateSchema() succeeded, want SchemaError")
			}
			var serr *catalog.SchemaError
			if !errors.As(err, &serr) {
				t.Fatalf("error %v is not a SchemaError", err)
			}
			if serr.Table != "genres" || serr.Column != tt.column {
				t.Errorf("conflict at %s.%s, want genres.%s", serr.Table, serr.Column, tt.column)
			}
			if !strings.Contains(serr.Message, tt.message) {
				t.Errorf("message %q does not mention %q", serr.Message, tt.message)
			}
			if len(report.Created) != 0 {
				t.Errorf("Created = %v, want none", report.Created)
			}

			// Nothing else was created
			tables, err := s.Tables(context.Background())
			if err != nil {
				t.Fatalf("Tables() failed: %v", err)
			}
			if len(tables) != 1 {
				t.Errorf("tables = %v, want only the pre-existing one", tables)
			}
		})
	}
}

func TestCreateSchema_AcceptsEquivalentConstraints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := testCatalog(t)

	// Same constraints as CreateSchema declares, written differently
	for _, ddl := range []string{
		`CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL, CHECK(name<>''))`,
		`CREATE UNIQUE INDEX genres_by_name ON genres(name)`,
	} {
		if _, err := s.db.Exec(ddl); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	report, err := s.CreateSchema(ctx, c)
	if err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	if strings.Join(report.Verified, ",") != "genres" {
		t.Errorf("Verified = %v, want [genres]", report.Verified)
	}
	if _, _, err := resolveKeyTx(ctx, s, mustTable(t, c, "genre"), "Drama"); err != nil {
		t.Errorf("ResolveKey() on verified table failed: %v", err)
	}
}

func TestCreateSchema_UniqueLinkTuple(t *testing.T) {
	c, err := catalog.New("tags",
		catalog.Table{Name: "tag", Kind: catalog.KindDimension, Key: "name"},
		catalog.Table{
			Name: "tag_pair",
			Kind: catalog.KindRelationship,
			Links: []catalog.Link{
				{Column: "left_id", Target: "tag"},
				{Column: "right_id", Target: "tag"},
			},
			Unique: true,
		},
	)
	if err != nil {
		t.Fatalf("catalog.New() failed: %v", err)
	}
	tags := `CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE CHECK (name <> ''))`
	pairs := `CREATE TABLE tag_pairs (id INTEGER PRIMARY KEY,
		left_id INTEGER NOT NULL REFERENCES tags(id), right_id INTEGER NOT NULL REFERENCES tags(id))`

	t.Run("missing", func(t *testing.T) {
		s := createTestStore(t)
		for _, ddl := range []string{tags, pairs} {
			if _, err := s.db.Exec(ddl); err != nil {
				t.Fatalf("setup: %v", err)
			}
		}

		_, err := s.CreateSchema(context.Background(), c)
		var serr *catalog.SchemaError
		if !errors.As(err, &serr) {
			t.Fatalf("CreateSchema() error = %v, want SchemaError", err)
		}
		if serr.Table != "tag_pairs" || !strings.Contains(serr.Message, "(left_id, right_id)") {
			t.Errorf("got %s: %s, want tag_pairs unique tuple", serr.Table, serr.Message)
		}
	})

	t.Run("index in other column order", func(t *testing.T) {
		s := createTestStore(t)
		for _, ddl := range []string{tags, pairs, `CREATE UNIQUE INDEX pair_once ON tag_pairs(right_id, left_id)`} {
			if _, err := s.db.Exec(ddl); err != nil {
				t.Fatalf("setup: %v", err)
			}
		}

		if _, err := s.CreateSchema(context.Background(), c); err != nil {
			t.Fatalf("CreateSchema() failed: %v", err)
		}
	})
}

func TestCreateSchema_ForeignKeyTargetMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := testCatalog(t)

	for _, ddl := range []string{
		`CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE CHECK (name <> ''))`,
		`CREATE TABLE shelves (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, year INTEGER NOT NULL,
			rating REAL, genre_id INTEGER NOT NULL REFERENCES shelves(id))`,
	} {
		if _, err := s.db.Exec(ddl); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	_, err := s.CreateSchema(ctx, c)
	if !catalog.IsSchemaError(err) {
		t.Fatalf("CreateSchema() error = %v, want SchemaError", err)
	}
	if !strings.Contains(err.Error(), "references shelves in store") {
		t.Errorf("error %q should name the stored target", err)
	}
}

func TestConstraints_Classified(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := testCatalog(t)
	if _, err := s.CreateSchema(ctx, c); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	genreID, _, err := resolveKeyTx(ctx, s, mustTable(t, c, "genre"), "Drama")
	if err != nil {
		t.Fatalf("ResolveKey() failed: %v", err)
	}
	readerID, _, err := resolveKeyTx(ctx, s, mustTable(t, c, "reader"), "Ann")
	if err != nil {
		t.Fatalf("ResolveKey() failed: %v", err)
	}

	book := mustTable(t, c, "book")
	issue := mustTable(t, c, "book_issue")
	row := catalog.RowRef{Kind: catalog.KindFact, Table: "book"}

	insert := func(table *catalog.Table, values map[string]ir.Value) error {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin() failed: %v", err)
		}
		defer tx.Rollback()
		_, err = tx.Insert(ctx, table, values)
		return Classify(err, row, "")
	}

	// Negative measure violates CHECK
	err = insert(book, map[string]ir.Value{
		"title": ir.String("Lear"), "year": ir.Int(-1), "genre_id": ir.Int(genreID),
	})
	if !catalog.IsValidationError(err) {
		t.Errorf("negative year: got %v, want ValidationError", err)
	}

	// Missing required column violates NOT NULL
	err = insert(book, map[string]ir.Value{"title": ir.String("Lear"), "genre_id": ir.Int(genreID)})
	if !catalog.IsValidationError(err) {
		t.Errorf("missing year: got %v, want ValidationError", err)
	}

	// Unknown link target violates FOREIGN KEY
	err = insert(book, map[string]ir.Value{
		"title": ir.String("Lear"), "year": ir.Int(1606), "genre_id": ir.Int(genreID + 100),
	})
	if !catalog.IsIntegrityError(err) {
		t.Errorf("dangling genre: got %v, want IntegrityError", err)
	}

	// Span end before start violates CHECK
	bookID := func() int64 {
		tx, _ := s.Begin(ctx)
		defer tx.Rollback()
		id, err := tx.Insert(ctx, book, map[string]ir.Value{
			"title": ir.String("Lear"), "year": ir.Int(1606), "genre_id": ir.Int(genreID),
		})
		if err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
		return id
	}()
	issued, _ := ir.ParseTime("2024-03-01")
	returned, _ := ir.ParseTime("2024-02-01")
	err = insert(issue, map[string]ir.Value{
		"issue_date": issued, "return_date": returned,
		"book_id": ir.Int(bookID), "reader_id": ir.Int(readerID),
	})
	if !catalog.IsValidationError(err) {
		t.Errorf("reversed span: got %v, want ValidationError", err)
	}

	// Duplicate natural key violates UNIQUE on plain insert
	err = insert(mustTable(t, c, "genre"), map[string]ir.Value{"name": ir.String("Drama")})
	if !catalog.IsIntegrityError(err) {
		t.Errorf("duplicate key: got %v, want IntegrityError", err)
	}
}

func TestClassify_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	if got := Classify(plain, catalog.RowRef{}, ""); got != plain {
		t.Errorf("Classify() = %v, want the original error", got)
	}
	if got := Classify(nil, catalog.RowRef{}, ""); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}
