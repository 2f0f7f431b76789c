package catalogs

import (
	"sort"

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/normalize"
)

// MinPrefixLength is the smallest prefix the index will match on. Shorter
// prefixes collide across whole departments ("CS1" matches every intro
// course) and are rejected at construction.
const MinPrefixLength = 3

// Index is the in-memory lookup structure built once per reconciliation run.
// It is immutable after construction and safe for concurrent readers.
type Index struct {
	entries   []Entry
	byCode    map[string]int   // normalized code -> entries offset
	byPrefix  map[string][]int // normalized code prefix -> entries offsets
	prefixLen int
}

// NewIndex builds an index over the catalog snapshot. Construction fails
// with a DuplicateCodeError when two entries normalize to the same code;
// a colliding snapshot would make the valid-code set ambiguous, so it is
// never tolerated.
func NewIndex(entries []Entry, prefixLen int) (*Index, error) {
	if len(entries) == 0 {
		return nil, errors.NewInputValidationError("catalog", nil, "catalog snapshot is empty")
	}
	if prefixLen < MinPrefixLength {
		return nil, errors.NewConfigError("catalog index", "prefix length must be at least 3", nil)
	}

	idx := &Index{
		entries:   make([]Entry, len(entries)),
		byCode:    make(map[string]int, len(entries)),
		byPrefix:  make(map[string][]int, len(entries)),
		prefixLen: prefixLen,
	}
	copy(idx.entries, entries)

	for i, e := range idx.entries {
		code := e.NormalizedCode()
		if code == "" {
			return nil, errors.NewInputValidationError("catalog", e.Code, "entry code normalizes to empty string")
		}
		if prev, exists := idx.byCode[code]; exists {
			return nil, &errors.DuplicateCodeError{
				Code:     code,
				FirstID:  idx.entries[prev].Code,
				SecondID: e.Code,
			}
		}
		idx.byCode[code] = i

		if len(code) >= prefixLen {
			p := code[:prefixLen]
			idx.byPrefix[p] = append(idx.byPrefix[p], i)
		}
	}

	return idx, nil
}

// PrefixLength returns the configured prefix length.
func (x *Index) PrefixLength() int {
	return x.prefixLen
}

// Len returns the number of catalog entries.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns the catalog entries in input order. The returned slice
// must not be modified.
func (x *Index) Entries() []Entry {
	return x.entries
}

// LookupExact returns the entry whose code normalizes to the same form as
// the given code, if any. The input may be raw or already normalized.
func (x *Index) LookupExact(code string) (Entry, bool) {
	i, ok := x.byCode[normalize.Code(code)]
	if !ok {
		return Entry{}, false
	}
	return x.entries[i], true
}

// LookupPrefix returns the single entry sharing the given code's normalized
// prefix. An ambiguous prefix (two or more candidates) is not a match:
// picking one would be a guess, and guesses belong to the semantic stage.
func (x *Index) LookupPrefix(code string) (Entry, bool) {
	n := normalize.Code(code)
	if len(n) < x.prefixLen {
		return Entry{}, false
	}
	candidates := x.byPrefix[n[:x.prefixLen]]
	if len(candidates) != 1 {
		return Entry{}, false
	}
	return x.entries[candidates[0]], true
}

// Contains reports whether the code, once normalized, names a catalog entry.
func (x *Index) Contains(code string) bool {
	_, ok := x.byCode[normalize.Code(code)]
	return ok
}

// ValidCodes returns the sorted normalized codes of every catalog entry.
// This list is the validation anchor for the semantic matching stage.
func (x *Index) ValidCodes() []string {
	codes := make([]string, 0, len(x.byCode))
	for c := range x.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Categories returns entry counts per category, for catalog summaries.
func (x *Index) Categories() map[string]int {
	counts := make(map[string]int)
	for _, e := range x.entries {
		counts[e.Category]++
	}
	return counts
}
