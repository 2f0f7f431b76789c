package session

import (
	"sync"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/coursekit/coursemap/pkg/records"
)

// Recorder accumulates one run's mapping results and audit trail in memory.
// It is append-only during the run and finalizes exactly once; mutations
// after Finalize are ignored. Nothing the recorder holds is durable until
// the store commits it.
type Recorder struct {
	mu        sync.Mutex
	sessionID string
	startedAt utc.Time
	total     int

	results       []MappingResult
	stats         Stats
	externalCalls []ExternalCall
	findings      []Finding
	warnings      []string
	runErr        string

	finalized bool
	session   *Session
}

// NewRecorder starts recording a run over the given number of input records.
func NewRecorder(total int) *Recorder {
	return &Recorder{
		sessionID: uuid.NewString(),
		startedAt: utc.Now(),
		total:     total,
	}
}

// SessionID returns the id results will be committed under.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Result appends one mapping result and updates the stage counts.
func (r *Recorder) Result(rec records.SourceRecord, code string, confidence int, method Method, status Status, alternatives []string, reasoning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}

	r.results = append(r.results, MappingResult{
		ID:             uuid.NewString(),
		SourceRecordID: rec.ID,
		SourceSnapshot: Snapshot{
			Name:        rec.Name,
			RawCode:     rec.RawCode,
			Description: rec.Description,
		},
		MappedCode:   code,
		Confidence:   confidence,
		Method:       method,
		Status:       status,
		Alternatives: alternatives,
		Reasoning:    reasoning,
		SessionID:    r.sessionID,
		CreatedAt:    utc.Now(),
	})

	switch status {
	case StatusMapped:
		switch method {
		case MethodExactCode:
			r.stats.ExactMatches++
		case MethodPrefixMatch:
			r.stats.PrefixMatches++
		case MethodSemanticMatch:
			r.stats.SemanticMatches++
		}
	case StatusFlagged:
		r.stats.Flagged++
	case StatusUnmapped:
		r.stats.Unmapped++
	}
}

// Unmapped appends an unmapped result for a record no strategy resolved.
func (r *Recorder) Unmapped(rec records.SourceRecord, reasoning string) {
	r.Result(rec, "", 0, MethodNone, StatusUnmapped, nil, reasoning)
}

// Reject logs a validation rejection. The rejected candidate produces no
// mapping result; only the finding survives.
func (r *Recorder) Reject(kind FindingKind, recordID, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.findings = append(r.findings, Finding{Kind: kind, RecordID: recordID, Detail: detail})
	r.stats.ValidationRejections++
}

// Finding logs a non-rejecting validation finding (e.g. a flagged match's
// low confidence).
func (r *Recorder) Finding(kind FindingKind, recordID, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.findings = append(r.findings, Finding{Kind: kind, RecordID: recordID, Detail: detail})
}

// ExternalCall logs one attempt against the semantic matching endpoint.
func (r *Recorder) ExternalCall(endpoint string, requestSize, responseSize int, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	call := ExternalCall{
		Timestamp:    utc.Now(),
		Endpoint:     endpoint,
		RequestSize:  requestSize,
		ResponseSize: responseSize,
		Success:      callErr == nil,
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	r.externalCalls = append(r.externalCalls, call)
}

// Warn adds a session-level warning from the anomaly scan.
func (r *Recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.warnings = append(r.warnings, msg)
}

// Fail marks the run as a whole-run failure. The session still finalizes so
// the failure is auditable.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || err == nil {
		return
	}
	r.runErr = err.Error()
}

// Results returns the accumulated mapping results.
func (r *Recorder) Results() []MappingResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MappingResult, len(r.results))
	copy(out, r.results)
	return out
}

// Finalize freezes the recorder and returns the immutable session. It is
// idempotent: later calls return the same session.
func (r *Recorder) Finalize() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return r.session
	}
	r.finalized = true

	stats := r.stats
	stats.Total = r.total

	r.session = &Session{
		ID:            r.sessionID,
		StartedAt:     r.startedAt,
		CompletedAt:   utc.Now(),
		Stats:         stats,
		ExternalCalls: r.externalCalls,
		Findings:      r.findings,
		Warnings:      r.warnings,
		Error:         r.runErr,
	}
	return r.session
}
