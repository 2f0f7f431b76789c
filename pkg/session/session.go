// Package session defines the engine's own output records: per-record
// mapping results and the per-run audit session. Both are append-only;
// re-reconciling a record produces a new result in a new session, never an
// edit of an old one.
package session

import (
	"github.com/agentstation/utc"
)

// Method identifies which matching strategy produced a result.
type Method string

// Matching methods.
const (
	MethodExactCode     Method = "exact_code"
	MethodPrefixMatch   Method = "prefix_match"
	MethodSemanticMatch Method = "semantic_match"
	MethodNone          Method = "none"
)

// Status is the terminal disposition of one mapping result.
type Status string

// Result statuses.
const (
	// StatusMapped means the record carries a validated canonical code.
	StatusMapped Status = "mapped"

	// StatusFlagged means a candidate code exists but needs human review.
	StatusFlagged Status = "flagged"

	// StatusUnmapped means no strategy produced a candidate.
	StatusUnmapped Status = "unmapped"
)

// FindingKind classifies a validation finding recorded in the session.
type FindingKind string

// Validation finding kinds.
const (
	// FindingInvalidCode marks a proposed code absent from the catalog.
	FindingInvalidCode FindingKind = "invalid_code"

	// FindingLowConfidence marks a valid match below the flag threshold.
	FindingLowConfidence FindingKind = "low_confidence"

	// FindingMalformedResponse marks a response (or response item) that
	// violates the structural contract, including unknown record ids.
	FindingMalformedResponse FindingKind = "malformed_response"

	// FindingConfidenceOutOfRange marks a confidence outside [0,100] that
	// was clamped and flagged.
	FindingConfidenceOutOfRange FindingKind = "confidence_out_of_range"
)

// Snapshot captures the source record fields the match was computed from,
// so results stay interpretable even if extraction is later re-run.
type Snapshot struct {
	Name        string `json:"name"`
	RawCode     string `json:"rawCode,omitempty"`
	Description string `json:"description,omitempty"`
}

// MappingResult is one record's reconciliation outcome. It is owned
// exclusively by this engine and stored apart from the source record.
// Invariant: Status == StatusMapped implies MappedCode was a member of the
// catalog's valid-code set when the session ran.
type MappingResult struct {
	ID             string   `json:"id"`
	SourceRecordID string   `json:"sourceRecordId"`
	SourceSnapshot Snapshot `json:"sourceSnapshot"`
	MappedCode     string   `json:"mappedCode,omitempty"` // normalized form
	Confidence     int      `json:"confidence"`
	Method         Method   `json:"matchMethod"`
	Status         Status   `json:"status"`
	Alternatives   []string `json:"alternativeCodes,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	SessionID      string   `json:"sessionId"`
	CreatedAt      utc.Time `json:"createdAt"`
}

// Stats are the per-stage counts for one run.
type Stats struct {
	Total                int `json:"total"`
	ExactMatches         int `json:"exactMatches"`
	PrefixMatches        int `json:"prefixMatches"`
	SemanticMatches      int `json:"semanticMatches"`
	Flagged              int `json:"flagged"`
	Unmapped             int `json:"unmapped"`
	ValidationRejections int `json:"validationRejections"`
}

// ExternalCall records one attempt against the semantic matching endpoint.
type ExternalCall struct {
	Timestamp    utc.Time `json:"timestamp"`
	Endpoint     string   `json:"endpoint"`
	RequestSize  int      `json:"requestSize"`
	ResponseSize int      `json:"responseSize"`
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
}

// Finding is one validation rejection or degradation noted during a run.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	RecordID string      `json:"recordId,omitempty"`
	Detail   string      `json:"detail"`
}

// Session is the immutable audit record of one reconciliation run. Every
// run, successful or aborted, finalizes exactly one Session.
type Session struct {
	ID            string         `json:"id"`
	StartedAt     utc.Time       `json:"startedAt"`
	CompletedAt   utc.Time       `json:"completedAt"`
	Stats         Stats          `json:"stats"`
	ExternalCalls []ExternalCall `json:"externalCalls,omitempty"`
	Findings      []Finding      `json:"validationFindings,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Error         string         `json:"error,omitempty"` // whole-run failure, empty on success
}

// Succeeded reports whether the run completed without a whole-run failure.
func (s *Session) Succeeded() bool {
	return s.Error == ""
}
