package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/relcat/internal/catalog"
)

// CompileSource compiles CUE source text and returns every catalog it
// declares under the top-level "catalog" field, in declaration order.
func CompileSource(filename string, src []byte) ([]*catalog.Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(value)
}

// LoadDir loads the CUE package in dir and compiles every catalog it
// declares.
func LoadDir(dir string) ([]*catalog.Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func compileAll(value cue.Value) ([]*catalog.Catalog, error) {
	root := value.LookupPath(cue.ParsePath("catalog"))
	if !root.Exists() {
		return nil, &CompileError{Field: "catalog", Message: "no catalog declared", Pos: value.Pos()}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*catalog.Catalog
	for iter.Next() {
		c, err := CompileCatalog(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", iter.Label(), err)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "catalog", Message: "no catalog declared", Pos: root.Pos()}
	}
	return out, nil
}
