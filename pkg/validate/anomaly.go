package validate

import (
	"fmt"
	"sort"

	"github.com/coursekit/coursemap/pkg/constants"
	"github.com/coursekit/coursemap/pkg/normalize"
	"github.com/coursekit/coursemap/pkg/session"
)

// ScanAnomalies runs the secondary pass over candidates that individually
// passed validation, looking for batch-level patterns that suggest templated
// or hallucinated output: one code assigned to many dissimilar records, or a
// cluster of identical non-round confidences. Anomalies become session
// warnings for human review; they never revoke an accepted result.
func ScanAnomalies(candidates []Candidate, rec *session.Recorder) {
	scanRepeatedCodes(candidates, rec)
	scanUniformConfidence(candidates, rec)
}

func scanRepeatedCodes(candidates []Candidate, rec *session.Recorder) {
	byCode := make(map[string][]Candidate)
	for _, c := range candidates {
		if c.Status == session.StatusMapped {
			byCode[c.Code] = append(byCode[c.Code], c)
		}
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		group := byCode[code]
		if len(group) < constants.RepeatedCodeThreshold {
			continue
		}
		if clusterSimilarity(group) >= 0.25 {
			// Many sections of one course legitimately share a code and a
			// near-identical name; only dissimilar clusters are suspicious.
			continue
		}
		rec.Warn(fmt.Sprintf("code %q assigned to %d dissimilar records; review for templated matching", code, len(group)))
	}
}

// clusterSimilarity returns the mean pairwise token overlap of the group's
// source names.
func clusterSimilarity(group []Candidate) float64 {
	if len(group) < 2 {
		return 1
	}
	var total float64
	var pairs int
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			total += tokenOverlap(group[i].Record.Name, group[j].Record.Name)
			pairs++
		}
	}
	return total / float64(pairs)
}

// tokenOverlap is the Jaccard similarity of the two names' token sets.
func tokenOverlap(a, b string) float64 {
	ta, tb := normalize.Tokens(a), normalize.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	union := len(set)
	var shared int
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

func scanUniformConfidence(candidates []Candidate, rec *session.Recorder) {
	byConfidence := make(map[int]int)
	for _, c := range candidates {
		if c.Status == session.StatusMapped {
			byConfidence[c.Confidence]++
		}
	}

	values := make([]int, 0, len(byConfidence))
	for v := range byConfidence {
		values = append(values, v)
	}
	sort.Ints(values)

	for _, v := range values {
		count := byConfidence[v]
		if count < constants.UniformConfidenceThreshold {
			continue
		}
		if v%5 == 0 {
			// Round values (75, 80, 95) repeat naturally; clusters at
			// arbitrary values like 87 suggest one templated judgment.
			continue
		}
		rec.Warn(fmt.Sprintf("%d matches share confidence %d; uniform non-round confidences suggest templated output", count, v))
	}
}
