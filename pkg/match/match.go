// Package match implements the deterministic matching stage: normalized
// exact-code lookup, then unique fixed-length prefix lookup. Pure
// computation, no I/O, no partial failure — a record either matches or
// passes through unmatched to the semantic stage.
package match

import (
	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/constants"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
)

// Match is one deterministic hit against the catalog.
type Match struct {
	Record     records.SourceRecord
	Entry      catalogs.Entry
	Confidence int
	Method     session.Method
}

// Outcome splits the input batch into matched and unmatched records.
// Unmatched preserves input order, which the prompt builder relies on for
// stable request payloads.
type Outcome struct {
	Matched   []Match
	Unmatched []records.SourceRecord
}

// Deterministic matches each record's raw code against the index. Records
// without a raw code, or whose code misses both strategies, pass through.
func Deterministic(idx *catalogs.Index, recs []records.SourceRecord) Outcome {
	var out Outcome

	for _, rec := range recs {
		if rec.RawCode == "" {
			out.Unmatched = append(out.Unmatched, rec)
			continue
		}

		if entry, ok := idx.LookupExact(rec.RawCode); ok {
			out.Matched = append(out.Matched, Match{
				Record:     rec,
				Entry:      entry,
				Confidence: constants.ExactMatchConfidence,
				Method:     session.MethodExactCode,
			})
			continue
		}

		if entry, ok := idx.LookupPrefix(rec.RawCode); ok {
			out.Matched = append(out.Matched, Match{
				Record:     rec,
				Entry:      entry,
				Confidence: constants.PrefixMatchConfidence,
				Method:     session.MethodPrefixMatch,
			})
			continue
		}

		out.Unmatched = append(out.Unmatched, rec)
	}

	return out
}
