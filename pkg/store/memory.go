package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/session"
)

// Memory is an in-memory Store for tests and embedded use. It honors the
// same commit contract as the SQLite store: a commit either lands whole or
// leaves the store untouched.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	results  []session.MappingResult
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*session.Session)}
}

// CommitRun implements Store.
func (m *Memory) CommitRun(_ context.Context, results []session.MappingResult, s *session.Session) error {
	if err := validateCommit(results, s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return errors.WrapPersistence("commit", s.ID,
			errors.New("session already committed"))
	}

	// Validation passed and the session id is fresh; from here the commit
	// cannot fail, so the append below is atomic from a reader's view.
	cp := *s
	m.sessions[s.ID] = &cp
	m.results = append(m.results, results...)
	return nil
}

// LatestMapping implements Store.
func (m *Memory) LatestMapping(_ context.Context, sourceRecordID string) (*session.MappingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best        *session.MappingResult
		bestSession *session.Session
	)
	for i := range m.results {
		r := &m.results[i]
		if r.SourceRecordID != sourceRecordID {
			continue
		}
		s := m.sessions[r.SessionID]
		if s == nil {
			continue
		}
		if best == nil || newerSession(s, bestSession) {
			best, bestSession = r, s
		}
	}
	if best == nil {
		return nil, errors.NewNotFoundError("mapping", sourceRecordID)
	}
	cp := *best
	return &cp, nil
}

// newerSession orders sessions by completion time, tie-broken by id so reads
// stay deterministic when two sessions share a timestamp.
func newerSession(a, b *session.Session) bool {
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.After(b.CompletedAt)
	}
	return a.ID > b.ID
}

// Session implements Store.
func (m *Memory) Session(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("session", id)
	}
	cp := *s
	return &cp, nil
}

// Sessions implements Store.
func (m *Memory) Sessions(_ context.Context) ([]*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return newerSession(out[i], out[j]) })
	return out, nil
}

// Results returns every committed mapping result, for tests.
func (m *Memory) Results() []session.MappingResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]session.MappingResult(nil), m.results...)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
