// Package validate interprets the semantic matching service's response. The
// response is untrusted input: codes may be hallucinated, record ids may be
// fabricated, confidences may be out of range, the whole document may be
// garbage. Nothing reaches persistence as a mapping without passing every
// check here — this is the engine's central correctness guarantee.
package validate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/constants"
	"github.com/coursekit/coursemap/pkg/normalize"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
)

// Config bounds the validator.
type Config struct {
	// ConfidenceFlagThreshold is the confidence below which a structurally
	// valid match is flagged instead of accepted.
	ConfidenceFlagThreshold int
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{ConfidenceFlagThreshold: constants.DefaultConfidenceThreshold}
}

// Candidate is one validated semantic match. Code is normalized and is
// guaranteed to be a member of the catalog's valid-code set.
type Candidate struct {
	Record       records.SourceRecord
	Code         string
	Confidence   int
	Status       session.Status // StatusMapped or StatusFlagged
	Reasoning    string
	Alternatives []string // normalized, catalog-valid, excluding Code
}

// NotFound is one record the service explicitly (or implicitly) reported no
// match for.
type NotFound struct {
	Record records.SourceRecord
	Reason string
}

// Outcome is the validator's split of the response.
type Outcome struct {
	Candidates []Candidate
	NotFound   []NotFound
}

// Wire shape of the expected response. Confidence is decoded as a
// json.Number so that a non-numeric value fails the item, not the document.
type rawResponse struct {
	Matches   []rawMatch     `json:"matches"`
	Unmatched []rawUnmatched `json:"unmatched"`
	Errors    []rawError     `json:"errors"`
}

type rawMatch struct {
	RecordID     string      `json:"recordId"`
	Code         string      `json:"code"`
	Confidence   json.Number `json:"confidence"`
	Reasoning    string      `json:"reasoning"`
	Alternatives []string    `json:"alternatives"`
}

type rawUnmatched struct {
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
}

type rawError struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error"`
}

// Response validates the raw response against the catalog index and the
// batch that was actually submitted. Per-candidate failures degrade that one
// candidate and are logged on the recorder; they never abort the run. A
// document that does not parse at all rejects everything: every batch record
// comes back as NotFound and a MalformedResponse finding is recorded.
func Response(raw []byte, idx *catalogs.Index, batch []records.SourceRecord, cfg Config, rec *session.Recorder) Outcome {
	byID := make(map[string]records.SourceRecord, len(batch))
	for _, r := range batch {
		byID[r.ID] = r
	}

	var resp rawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		rec.Reject(session.FindingMalformedResponse, "",
			fmt.Sprintf("response is not the expected three-array JSON document: %v", err))
		return rejectAll(batch, "semantic response was malformed")
	}

	var out Outcome
	seen := make(map[string]bool, len(batch))

	for _, m := range resp.Matches {
		if c, ok := validateMatch(m, idx, byID, seen, cfg, rec); ok {
			out.Candidates = append(out.Candidates, c)
			seen[c.Record.ID] = true
		}
	}

	for _, u := range resp.Unmatched {
		r, ok := claimRecord(u.RecordID, byID, seen, "unmatched", rec)
		if !ok {
			continue
		}
		seen[r.ID] = true
		reason := u.Reason
		if reason == "" {
			reason = "service reported no match"
		}
		out.NotFound = append(out.NotFound, NotFound{Record: r, Reason: reason})
	}

	for _, e := range resp.Errors {
		r, ok := claimRecord(e.RecordID, byID, seen, "errors", rec)
		if !ok {
			continue
		}
		seen[r.ID] = true
		reason := e.Error
		if reason == "" {
			reason = "service reported an error"
		}
		out.NotFound = append(out.NotFound, NotFound{Record: r, Reason: "service error: " + reason})
	}

	// Every submitted record must come back somewhere. Ones the service
	// ignored fall through as not found so the session stays complete.
	for _, r := range batch {
		if !seen[r.ID] {
			out.NotFound = append(out.NotFound, NotFound{Record: r, Reason: "record absent from semantic response"})
		}
	}

	return out
}

// validateMatch runs one candidate through the rule chain. Each rule is
// independently sufficient to reject.
func validateMatch(m rawMatch, idx *catalogs.Index, byID map[string]records.SourceRecord, seen map[string]bool, cfg Config, rec *session.Recorder) (Candidate, bool) {
	// Rule: structural fields present.
	if m.RecordID == "" || m.Code == "" {
		rec.Reject(session.FindingMalformedResponse, m.RecordID, "match entry missing recordId or code")
		return Candidate{}, false
	}

	// Rule: the proposed code must exist in the catalog. A fabricated code
	// never becomes a mapping, regardless of stated confidence, and it is
	// reported as InvalidCode even when the record reference is also bad.
	code := normalize.Code(m.Code)
	if !idx.Contains(code) {
		rec.Reject(session.FindingInvalidCode, m.RecordID,
			fmt.Sprintf("proposed code %q is not in the catalog", m.Code))
		return Candidate{}, false
	}

	// Rule: the referenced record must exist in the submitted batch and
	// must not already be claimed by an earlier entry.
	r, ok := byID[m.RecordID]
	if !ok {
		rec.Reject(session.FindingMalformedResponse, m.RecordID,
			fmt.Sprintf("match references record %q not present in the submitted batch", m.RecordID))
		return Candidate{}, false
	}
	if seen[m.RecordID] {
		rec.Reject(session.FindingMalformedResponse, m.RecordID,
			fmt.Sprintf("record %q referenced more than once in response", m.RecordID))
		return Candidate{}, false
	}

	// Rule: confidence must be an integer; out-of-range values are clamped
	// and the candidate is flagged rather than silently accepted.
	confidence, clamped, err := parseConfidence(m.Confidence)
	if err != nil {
		rec.Reject(session.FindingMalformedResponse, m.RecordID,
			fmt.Sprintf("confidence %q is not an integer", m.Confidence.String()))
		return Candidate{}, false
	}

	c := Candidate{
		Record:       r,
		Code:         code,
		Confidence:   confidence,
		Status:       session.StatusMapped,
		Reasoning:    m.Reasoning,
		Alternatives: validAlternatives(m.Alternatives, code, idx),
	}

	if clamped {
		rec.Finding(session.FindingConfidenceOutOfRange, m.RecordID,
			fmt.Sprintf("confidence %s clamped to %d", m.Confidence.String(), confidence))
		c.Status = session.StatusFlagged
		return c, true
	}

	// Rule: below-threshold confidence means flagged, not accepted.
	if confidence < cfg.ConfidenceFlagThreshold {
		rec.Finding(session.FindingLowConfidence, m.RecordID,
			fmt.Sprintf("confidence %d below threshold %d", confidence, cfg.ConfidenceFlagThreshold))
		c.Status = session.StatusFlagged
		return c, true
	}

	// Two or more equally plausible catalog codes means the choice needs a
	// human, however confident the service claims to be.
	if len(c.Alternatives) >= 2 {
		c.Status = session.StatusFlagged
	}

	return c, true
}

// claimRecord validates a non-match entry's record reference.
func claimRecord(id string, byID map[string]records.SourceRecord, seen map[string]bool, array string, rec *session.Recorder) (records.SourceRecord, bool) {
	if id == "" {
		rec.Reject(session.FindingMalformedResponse, "", array+" entry missing recordId")
		return records.SourceRecord{}, false
	}
	r, ok := byID[id]
	if !ok {
		rec.Reject(session.FindingMalformedResponse, id,
			fmt.Sprintf("%s entry references record %q not present in the submitted batch", array, id))
		return records.SourceRecord{}, false
	}
	if seen[id] {
		rec.Reject(session.FindingMalformedResponse, id,
			fmt.Sprintf("record %q referenced more than once in response", id))
		return records.SourceRecord{}, false
	}
	return r, true
}

// parseConfidence decodes a confidence value, clamping into [0,100].
// The clamped flag reports that the stated value was out of range.
func parseConfidence(n json.Number) (int, bool, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, false, err
	}
	if f != math.Trunc(f) || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("not an integer: %v", f)
	}
	v := int(f)
	switch {
	case v < 0:
		return 0, true, nil
	case v > 100:
		return 100, true, nil
	}
	return v, false, nil
}

// validAlternatives normalizes alternative codes and keeps only ones that
// exist in the catalog and differ from the chosen code.
func validAlternatives(alts []string, chosen string, idx *catalogs.Index) []string {
	var out []string
	seen := map[string]bool{chosen: true}
	for _, a := range alts {
		n := normalize.Code(a)
		if n == "" || seen[n] || !idx.Contains(n) {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// rejectAll maps every batch record to NotFound with the given reason.
func rejectAll(batch []records.SourceRecord, reason string) Outcome {
	out := Outcome{NotFound: make([]NotFound, 0, len(batch))}
	for _, r := range batch {
		out.NotFound = append(out.NotFound, NotFound{Record: r, Reason: reason})
	}
	return out
}
