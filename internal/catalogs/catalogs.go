// Package catalogs embeds the builtin catalog declarations: library,
// exoplanets, bookshop and restaurant.
package catalogs

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/compiler"
)

//go:embed *.cue
var files embed.FS

var (
	once     sync.Once
	builtins map[string]*catalog.Catalog
	loadErr  error
)

func compileBuiltins() {
	builtins = make(map[string]*catalog.Catalog)
	paths, err := fs.Glob(files, "*.cue")
	if err != nil {
		loadErr = err
		return
	}
	for _, path := range paths {
		src, err := files.ReadFile(path)
		if err != nil {
			loadErr = err
			return
		}
		cats, err := compiler.CompileSource(path, src)
		if err != nil {
			loadErr = fmt.Errorf("builtin %s: %w", path, err)
			return
		}
		for _, c := range cats {
			builtins[c.Name] = c
		}
	}
}

// Names returns the builtin catalog names in sorted order.
func Names() []string {
	once.Do(compileBuiltins)
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load returns the builtin catalog with the given name.
// Unknown names return a catalog.NotFoundError.
func Load(name string) (*catalog.Catalog, error) {
	once.Do(compileBuiltins)
	if loadErr != nil {
		return nil, loadErr
	}
	c, ok := builtins[name]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "catalog " + name}
	}
	return c, nil
}

// Resolve returns a builtin catalog by name, or compiles the CUE package in
// the directory ref when ref is not a builtin name. A directory declaring
// several catalogs must be disambiguated with "dir:name".
func Resolve(ref string) (*catalog.Catalog, error) {
	if slices.Contains(Names(), ref) {
		return Load(ref)
	}

	dir, name := ref, ""
	if i := strings.LastIndexByte(ref, ':'); i > 0 && !strings.ContainsAny(ref[i:], `/\`) {
		dir, name = ref[:i], ref[i+1:]
	}
	cats, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(cats) > 1 {
			return nil, fmt.Errorf("%s declares %d catalogs; use %s:<name>", dir, len(cats), dir)
		}
		return cats[0], nil
	}
	for _, c := range cats {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, &catalog.NotFoundError{Entity: "catalog " + name}
}
