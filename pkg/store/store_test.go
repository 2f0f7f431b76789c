package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
)

// openStores returns one of each Store implementation so every contract test
// runs against both.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(filepath.Join(t.TempDir(), "coursemap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemory()}
}

// commitRun records one mapped result for each record id and commits it.
func commitRun(t *testing.T, s Store, recordIDs ...string) *session.Session {
	t.Helper()
	rec := session.NewRecorder(len(recordIDs))
	for _, id := range recordIDs {
		rec.Result(records.SourceRecord{ID: id, Name: "Course " + id},
			"cs101", 100, session.MethodExactCode, session.StatusMapped, nil, "")
	}
	results := rec.Results()
	sess := rec.Finalize()
	require.NoError(t, s.CommitRun(context.Background(), results, sess))
	return sess
}

func TestCommitRunRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := commitRun(t, s, "r1", "r2")

			got, err := s.Session(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, got.ID)
			assert.Equal(t, 2, got.Stats.Total)
			assert.Equal(t, 2, got.Stats.ExactMatches)
			assert.True(t, got.Succeeded())

			mapping, err := s.LatestMapping(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, "cs101", mapping.MappedCode)
			assert.Equal(t, session.StatusMapped, mapping.Status)
			assert.Equal(t, sess.ID, mapping.SessionID)
			assert.Equal(t, "Course r1", mapping.SourceSnapshot.Name)
		})
	}
}

func TestLatestMappingPrefersNewestSession(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := commitRun(t, s, "r1")
			// Finalize stamps CompletedAt from the clock; make sure the
			// second session completes measurably later.
			time.Sleep(5 * time.Millisecond)
			second := commitRun(t, s, "r1")
			require.True(t, second.CompletedAt.After(first.CompletedAt))

			mapping, err := s.LatestMapping(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, second.ID, mapping.SessionID)
		})
	}
}

// commitAt commits one mapped result under a session with a fixed
// completion time, bypassing the recorder's clock.
func commitAt(t *testing.T, s Store, sessionID, recordID, code string, completed time.Time) {
	t.Helper()
	sess := &session.Session{
		ID:          sessionID,
		StartedAt:   utc.New(completed.Add(-time.Second)),
		CompletedAt: utc.New(completed),
		Stats:       session.Stats{Total: 1, ExactMatches: 1},
	}
	result := session.MappingResult{
		ID:             sessionID + "-result",
		SourceRecordID: recordID,
		SourceSnapshot: session.Snapshot{Name: "Course"},
		MappedCode:     code,
		Confidence:     100,
		Method:         session.MethodExactCode,
		Status:         session.StatusMapped,
		SessionID:      sessionID,
		CreatedAt:      utc.New(completed),
	}
	require.NoError(t, s.CommitRun(context.Background(), []session.MappingResult{result}, sess))
}

func TestLatestMappingSubsecondOrdering(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			// The earlier session completes on a whole second, the later
			// one half a second after it. Chronological order must win
			// however the timestamps happen to be rendered.
			base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
			commitAt(t, s, "session-whole", "r1", "cs101", base)
			commitAt(t, s, "session-half", "r1", "cs201", base.Add(500*time.Millisecond))

			mapping, err := s.LatestMapping(context.Background(), "r1")
			require.NoError(t, err)
			assert.Equal(t, "cs201", mapping.MappedCode)
			assert.Equal(t, "session-half", mapping.SessionID)

			sessions, err := s.Sessions(context.Background())
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.Equal(t, "session-half", sessions[0].ID)
		})
	}
}

func TestLatestMappingNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LatestMapping(context.Background(), "nonexistent")
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Session(context.Background(), "nonexistent")
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestFailedRunCommitsSessionWithoutResults(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := session.NewRecorder(3)
			rec.Fail(errors.New("semantic endpoint unreachable"))
			sess := rec.Finalize()
			require.NoError(t, s.CommitRun(ctx, nil, sess))

			got, err := s.Session(ctx, sess.ID)
			require.NoError(t, err)
			assert.False(t, got.Succeeded())
			assert.Contains(t, got.Error, "unreachable")

			_, err = s.LatestMapping(ctx, "r1")
			assert.True(t, errors.IsNotFound(err), "failed run must not publish mappings")
		})
	}
}

func TestCommitValidation(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := s.CommitRun(ctx, nil, nil)
			assert.True(t, errors.IsInputValidation(err))

			// Unfinalized session.
			err = s.CommitRun(ctx, nil, &session.Session{ID: "s1"})
			assert.True(t, errors.IsInputValidation(err))

			// Result from a different session.
			rec := session.NewRecorder(1)
			rec.Result(records.SourceRecord{ID: "r1", Name: "X"},
				"cs101", 100, session.MethodExactCode, session.StatusMapped, nil, "")
			results := rec.Results()
			results[0].SessionID = "someone-else"
			sess := rec.Finalize()
			err = s.CommitRun(ctx, results, sess)
			assert.True(t, errors.IsInputValidation(err))

			// The rejected commit left nothing behind.
			_, err = s.Session(ctx, sess.ID)
			assert.True(t, errors.IsNotFound(err))
			_, err = s.LatestMapping(ctx, "r1")
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := commitRun(t, s, "r1")

			// Re-committing the same session id must fail whole, not
			// duplicate or partially overwrite rows.
			rec := session.NewRecorder(1)
			rec.Result(records.SourceRecord{ID: "r9", Name: "Y"},
				"cs101", 100, session.MethodExactCode, session.StatusMapped, nil, "")
			results := rec.Results()
			dup := rec.Finalize()
			for i := range results {
				results[i].SessionID = sess.ID
			}
			dup.ID = sess.ID
			err := s.CommitRun(ctx, results, dup)
			require.Error(t, err)
			assert.True(t, errors.IsPersistence(err) || errors.IsInputValidation(err))

			_, err = s.LatestMapping(ctx, "r9")
			assert.True(t, errors.IsNotFound(err), "aborted commit must not leave its results readable")
		})
	}
}

func TestSessionsOrderedNewestFirst(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			first := commitRun(t, s, "a")
			time.Sleep(5 * time.Millisecond)
			second := commitRun(t, s, "b")

			sessions, err := s.Sessions(context.Background())
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.Equal(t, second.ID, sessions[0].ID)
			assert.Equal(t, first.ID, sessions[1].ID)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coursemap.db")
	ctx := context.Background()

	sq, err := Open(path)
	require.NoError(t, err)
	sess := commitRun(t, sq, "r1")
	require.NoError(t, sq.Close())

	sq, err = Open(path)
	require.NoError(t, err)
	defer sq.Close()

	got, err := sq.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	mapping, err := sq.LatestMapping(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "cs101", mapping.MappedCode)
}
