// Package store persists committed reconciliation runs. A run commits as a
// unit: its mapping results and its audit session land together or not at
// all, and readers only ever observe published sessions. Mapping results are
// append-only; a re-run of the same source records produces new rows under a
// new session rather than updates.
package store

import (
	"context"

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/session"
)

// Store is the persistence contract for reconciliation output.
type Store interface {
	// CommitRun atomically persists a finalized session together with its
	// mapping results. Results may be empty (a failed run still commits its
	// session for the audit trail). A commit that fails leaves no trace:
	// no partial results, no half-published session.
	CommitRun(ctx context.Context, results []session.MappingResult, s *session.Session) error

	// LatestMapping returns the source record's mapping from the most
	// recently completed published session. Returns a NotFoundError when no
	// published session mapped the record.
	LatestMapping(ctx context.Context, sourceRecordID string) (*session.MappingResult, error)

	// Session returns one published session by id.
	Session(ctx context.Context, id string) (*session.Session, error)

	// Sessions returns all published sessions, most recently completed
	// first.
	Sessions(ctx context.Context) ([]*session.Session, error)

	// Close releases the store's resources.
	Close() error
}

// validateCommit enforces the cross-store commit preconditions.
func validateCommit(results []session.MappingResult, s *session.Session) error {
	if s == nil {
		return errors.NewInputValidationError("session", nil, "session is required")
	}
	if s.ID == "" {
		return errors.NewInputValidationError("session.ID", "", "session id is required")
	}
	if s.CompletedAt.IsZero() {
		return errors.NewInputValidationError("session.CompletedAt", nil, "session must be finalized before commit")
	}
	for i, r := range results {
		if r.ID == "" {
			return errors.NewInputValidationError("results", i, "mapping result missing id")
		}
		if r.SessionID != s.ID {
			return errors.NewInputValidationError("results", r.ID, "mapping result belongs to a different session")
		}
	}
	return nil
}
