package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/compiler"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"bookshop", "exoplanets", "library", "restaurant"}, Names())
}

func TestLoadLibrary(t *testing.T) {
	c, err := Load("library")
	require.NoError(t, err)

	var sqlNames []string
	for _, tbl := range c.Tables {
		sqlNames = append(sqlNames, tbl.SQLName)
	}
	assert.Equal(t, []string{"genres", "membership_statuses", "books", "readers", "book_issues"}, sqlNames)

	issue, err := c.Lookup("book_issue")
	require.NoError(t, err)
	require.NotNil(t, issue.Span)
	assert.Equal(t, "issue_date", issue.Span.Start)
	assert.Equal(t, "return_date", issue.Span.End)
}

func TestLoadExoplanets(t *testing.T) {
	c, err := Load("exoplanets")
	require.NoError(t, err)

	star, err := c.Lookup("stars")
	require.NoError(t, err)
	distance, ok := star.Column("distance")
	require.True(t, ok)
	assert.True(t, distance.Nullable)
	assert.Equal(t, catalog.TypeReal, distance.Type)

	class, err := c.Lookup("spectral_class")
	require.NoError(t, err)
	assert.Equal(t, "spectral_classes", class.SQLName)
}

func TestLoadRestaurant(t *testing.T) {
	c, err := Load("restaurant")
	require.NoError(t, err)

	tables, err := c.Lookup("dining_table")
	require.NoError(t, err)
	assert.Equal(t, "tables", tables.SQLName)

	od, err := c.Lookup("order_dish")
	require.NoError(t, err)
	assert.True(t, od.Unique)
}

func TestBuiltinsLintWarningsOnly(t *testing.T) {
	for _, name := range Names() {
		c, err := Load(name)
		require.NoError(t, err)
		for _, d := range compiler.Lint(c) {
			assert.True(t, d.IsWarning(), "%s: %s", name, d)
		}
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("zoo")
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `package zoo

catalog: zoo: {
	dimension: species: {key: "name"}
	fact: animal: {label: "name", fields: {name: "text"}, links: {species_id: "species"}}
}
catalog: aquarium: {
	dimension: tank: {key: "code"}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zoo.cue"), []byte(src), 0o644))

	_, err := Resolve(dir)
	require.Error(t, err, "two catalogs need a name")
	assert.Contains(t, err.Error(), "declares 2 catalogs")

	c, err := Resolve(dir + ":aquarium")
	require.NoError(t, err)
	assert.Equal(t, "aquarium", c.Name)

	_, err = Resolve(dir + ":reptiles")
	assert.True(t, catalog.IsNotFound(err))
}

func TestResolveBuiltin(t *testing.T) {
	c, err := Resolve("bookshop")
	require.NoError(t, err)
	assert.Equal(t, "bookshop", c.Name)
}
