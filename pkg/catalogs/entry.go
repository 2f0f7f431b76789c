// Package catalogs defines the canonical course catalog and the in-memory
// index built from it for one reconciliation run. The catalog is read-only
// input; the index is the single source of truth for which codes are valid.
package catalogs

import "github.com/coursekit/coursemap/pkg/normalize"

// Entry is one canonical course in the reference catalog. Code is the
// primary key and must be unique within a catalog snapshot after
// normalization.
type Entry struct {
	Code        string  `yaml:"code" json:"code"`
	Name        string  `yaml:"name" json:"name"`
	Category    string  `yaml:"category" json:"category"`
	SubCategory string  `yaml:"sub_category,omitempty" json:"subCategory,omitempty"`
	Credit      float64 `yaml:"credit,omitempty" json:"credit,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// NormalizedCode returns the entry's code in canonical comparable form.
func (e Entry) NormalizedCode() string {
	return normalize.Code(e.Code)
}
