package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// ValuesDir is the catalog subdirectory holding downloaded parameter values,
// one file per Dimension.Source.
const ValuesDir = "values"

// file is the top-level shape of a catalog file in either syntax.
type file struct {
	Datasets []*Dataset `yaml:"datasets" json:"datasets"`
}

// LoadError reports a catalog file that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads every *.yaml, *.yml and *.cue file directly under dir, in
// lexical order, and resolves dimension sources against dir/values.
//
// A dimension whose source file is absent is left empty; enumeration reports
// it. Any other read or decode failure aborts the load.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Err: errors.New("not a directory")}
	}

	paths, err := findCatalogFiles(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	if len(paths) == 0 {
		return nil, &LoadError{Path: dir, Err: errors.New("no catalog files found")}
	}

	var datasets []*Dataset
	for _, path := range paths {
		f, err := decodeFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		datasets = append(datasets, f.Datasets...)
	}

	for _, d := range datasets {
		if err := resolveSources(dir, d); err != nil {
			return nil, err
		}
	}

	return New(datasets...)
}

// findCatalogFiles returns catalog files directly under dir, sorted.
func findCatalogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".cue":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func decodeFile(path string) (*file, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f file
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		if err := decodeCUE(path, data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &f, nil
}

// decodeCUE evaluates a CUE catalog file and decodes its concrete value
// through JSON, so Value accepts the same shorthand forms in both syntaxes.
func decodeCUE(path string, data []byte, out *file) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate cue: %w", err)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("export cue: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode cue: %w", err)
	}
	return nil
}

// resolveSources fills empty dimensions from their values files.
func resolveSources(dir string, d *Dataset) error {
	for i := range d.Params {
		dim := &d.Params[i]
		if len(dim.Values) > 0 || dim.Source == "" {
			continue
		}
		path := filepath.Join(dir, ValuesDir, dim.Source+".yaml")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		var values []Value
		if err := yaml.Unmarshal(data, &values); err != nil {
			return &LoadError{Path: path, Err: fmt.Errorf("decode values: %w", err)}
		}
		dim.Values = values
	}
	return nil
}
