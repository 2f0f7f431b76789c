package catalogs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/coursekit/coursemap/pkg/errors"
)

// File is the on-disk YAML document shape for a catalog snapshot.
type File struct {
	// Catalog names the snapshot, e.g. "fall-2026".
	Catalog string `yaml:"catalog,omitempty"`

	// Courses are the canonical entries.
	Courses []Entry `yaml:"courses"`
}

// LoadFile reads catalog entries from one YAML file.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if len(f.Courses) == 0 {
		return nil, errors.NewInputValidationError("catalog", path, "catalog file contains no courses")
	}
	return f.Courses, nil
}

// LoadDir reads every *.yaml/*.yml file in dir and concatenates their
// entries in filename order. Catalogs are commonly split per category, one
// file each; duplicate codes across files surface when the index is built.
func LoadDir(dir string) ([]Entry, error) {
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapParse("yaml", dir, err)
	}

	var paths []string
	for _, d := range names {
		if d.IsDir() {
			continue
		}
		switch filepath.Ext(d.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, d.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, errors.NewInputValidationError("catalog", dir, "no catalog files found")
	}

	var entries []Entry
	for _, p := range paths {
		loaded, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	return entries, nil
}

// Load reads a catalog from path, which may be a single YAML file or a
// directory of them.
func Load(path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}
