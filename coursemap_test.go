package coursemap

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/semantic"
	"github.com/coursekit/coursemap/pkg/session"
	"github.com/coursekit/coursemap/pkg/store"
)

func testCatalog() []catalogs.Entry {
	return []catalogs.Entry{
		{Code: "CS101", Name: "Intro to Computer Science", Category: "CS"},
		{Code: "CS201", Name: "Data Structures", Category: "CS"},
		{Code: "MATH-150", Name: "Calculus I", Category: "Math"},
		{Code: "EN102", Name: "Composition II", Category: "English"},
	}
}

// scriptedClient answers with the given match for every record in the
// request, so tests can drive the validator from the engine's entry point.
func scriptedClient(code string, confidence int) semantic.Client {
	return semantic.Func{
		Name: "scripted",
		Fn: func(_ context.Context, request []byte) ([]byte, error) {
			var req struct {
				Records []records.SourceRecord `json:"records"`
			}
			if err := json.Unmarshal(request, &req); err != nil {
				return nil, err
			}
			type m struct {
				RecordID   string `json:"recordId"`
				Code       string `json:"code"`
				Confidence int    `json:"confidence"`
			}
			var matches []m
			for _, r := range req.Records {
				matches = append(matches, m{RecordID: r.ID, Code: code, Confidence: confidence})
			}
			return json.Marshal(map[string]any{"matches": matches})
		},
	}
}

func newEngine(t *testing.T, client semantic.Client, opts ...Option) (Coursemap, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	opts = append([]Option{
		WithCatalog(testCatalog()),
		WithStore(mem),
		WithClient(client),
	}, opts...)
	cm, err := New(opts...)
	require.NoError(t, err)
	return cm, mem
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	var cfg *errors.ConfigError
	assert.True(t, errors.As(err, &cfg))
}

func TestNewRejectsDuplicateCatalogCodes(t *testing.T) {
	_, err := New(WithCatalog([]catalogs.Entry{
		{Code: "CS101", Name: "Intro"},
		{Code: "cs-101", Name: "Intro again"}, // same code after normalization
	}))
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateCode(err))
}

func TestReconcileDeterministicOnly(t *testing.T) {
	cm, mem := newEngine(t, nil)

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Intro CS", RawCode: "CS-101"},
		{ID: "r2", Name: "Calc Honors", RawCode: "MATH150H"},
	})
	require.NoError(t, err)
	require.True(t, sess.Succeeded())

	assert.Equal(t, 2, sess.Stats.Total)
	assert.Equal(t, 1, sess.Stats.ExactMatches)
	assert.Equal(t, 1, sess.Stats.PrefixMatches)
	assert.Empty(t, sess.ExternalCalls, "no semantic call when everything matched deterministically")

	mapping, err := cm.LatestMapping(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "cs101", mapping.MappedCode)
	assert.Equal(t, session.MethodExactCode, mapping.Method)

	assert.Len(t, mem.Results(), 2)
}

func TestReconcileSemanticStage(t *testing.T) {
	cm, mem := newEngine(t, scriptedClient("CS201", 92))

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Intro CS", RawCode: "CS101"},
		{ID: "r2", Name: "Advanced Data Structures"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sess.Stats.ExactMatches)
	assert.Equal(t, 1, sess.Stats.SemanticMatches)
	require.Len(t, sess.ExternalCalls, 1)
	assert.True(t, sess.ExternalCalls[0].Success)
	assert.Equal(t, "scripted", sess.ExternalCalls[0].Endpoint)

	mapping, err := cm.LatestMapping(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, "cs201", mapping.MappedCode)
	assert.Equal(t, session.MethodSemanticMatch, mapping.Method)
	assert.Len(t, mem.Results(), 2)
}

func TestReconcileWithoutClientLeavesUnmapped(t *testing.T) {
	cm, _ := newEngine(t, nil)

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Underwater Basket Weaving"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sess.Stats.Unmapped)
	assert.NotEmpty(t, sess.Warnings)
	assert.Empty(t, sess.ExternalCalls)
}

func TestReconcileRejectsHallucinatedCodes(t *testing.T) {
	cm, _ := newEngine(t, scriptedClient("XX9999", 99))

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Mystery Course"},
	})
	require.NoError(t, err, "a bad response degrades records, it does not fail the run")

	assert.Zero(t, sess.Stats.SemanticMatches)
	assert.Equal(t, 1, sess.Stats.Unmapped, "rejected record still accounted for")
	assert.Equal(t, 1, sess.Stats.ValidationRejections)
	require.NotEmpty(t, sess.Findings)
	assert.Equal(t, session.FindingInvalidCode, sess.Findings[0].Kind)

	_, err = cm.LatestMapping(context.Background(), "r1")
	assert.True(t, errors.IsNotFound(err), "hallucinated code must never be persisted")
}

func TestReconcileLowConfidenceFlagged(t *testing.T) {
	cm, _ := newEngine(t, scriptedClient("CS201", 60))

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Data Structures Seminar"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sess.Stats.Flagged)
	assert.Zero(t, sess.Stats.SemanticMatches)

	mapping, err := cm.LatestMapping(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusFlagged, mapping.Status)
	assert.Equal(t, "cs201", mapping.MappedCode, "flagged candidate keeps its code for review")
}

func TestReconcileSemanticFailureCommitsFailedSession(t *testing.T) {
	boom := semantic.Func{
		Name: "broken",
		Fn: func(context.Context, []byte) ([]byte, error) {
			return nil, errors.WrapExternalCall("broken", 503, errors.New("service unavailable"))
		},
	}
	cm, mem := newEngine(t, boom)

	sess, err := cm.Reconcile(context.Background(), []records.SourceRecord{
		{ID: "r1", Name: "Intro CS", RawCode: "CS101"}, // deterministic hit
		{ID: "r2", Name: "Mystery Course"},             // needs semantic
	})
	require.Error(t, err)
	require.NotNil(t, sess, "failed runs still produce an auditable session")
	assert.False(t, sess.Succeeded())
	assert.Contains(t, sess.Error, "service unavailable")
	require.Len(t, sess.ExternalCalls, 1)
	assert.False(t, sess.ExternalCalls[0].Success)

	// All-or-nothing: the deterministic match from the failed run must not
	// be readable either.
	assert.Empty(t, mem.Results())
	_, err = cm.LatestMapping(context.Background(), "r1")
	assert.True(t, errors.IsNotFound(err))

	// But the session itself committed for the audit trail.
	got, err := cm.Session(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Succeeded())
}

func TestReconcileCanceledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelOnCall := semantic.Func{
		Name: "canceler",
		Fn: func(context.Context, []byte) ([]byte, error) {
			cancel() // response arrives after the run's context is gone
			return []byte(`{"matches":[]}`), nil
		},
	}
	cm, mem := newEngine(t, cancelOnCall)

	sess, err := cm.Reconcile(ctx, []records.SourceRecord{
		{ID: "r1", Name: "Mystery Course"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
	assert.False(t, sess.Succeeded())
	assert.Empty(t, mem.Results())

	// The failed session committed despite the canceled run context.
	_, err = cm.Session(context.Background(), sess.ID)
	require.NoError(t, err)
}

func TestReconcileBatchesLargeInputs(t *testing.T) {
	var calls int
	counting := semantic.Func{
		Name: "counting",
		Fn: func(_ context.Context, request []byte) ([]byte, error) {
			calls++
			var req struct {
				Records []records.SourceRecord `json:"records"`
			}
			if err := json.Unmarshal(request, &req); err != nil {
				return nil, err
			}
			assert.LessOrEqual(t, len(req.Records), 2)
			return []byte(`{"matches":[]}`), nil
		},
	}
	cm, _ := newEngine(t, counting, WithMaxBatchSize(2))

	var recs []records.SourceRecord
	for i := 0; i < 5; i++ {
		recs = append(recs, records.SourceRecord{ID: fmt.Sprintf("r%d", i), Name: fmt.Sprintf("Course %d", i)})
	}
	sess, err := cm.Reconcile(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 3, calls, "5 records at batch size 2 need 3 calls")
	assert.Equal(t, 5, sess.Stats.Unmapped, "empty responses leave every record unmapped but accounted for")
	assert.Len(t, sess.ExternalCalls, 3)
}

func TestReconcileInputValidation(t *testing.T) {
	cm, mem := newEngine(t, nil)
	ctx := context.Background()

	badInputs := [][]records.SourceRecord{
		nil,
		{{ID: "", Name: "No ID"}},
		{{ID: "r1", Name: "A"}, {ID: "r1", Name: "B"}},
	}
	for _, recs := range badInputs {
		sess, err := cm.Reconcile(ctx, recs)
		assert.True(t, errors.IsInputValidation(err))

		// Caller faults are whole-run failures too: the run commits a
		// failed session so it stays auditable.
		require.NotNil(t, sess)
		assert.False(t, sess.Succeeded())
		got, err := cm.Session(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.Error, got.Error)
	}

	sessions, err := cm.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, len(badInputs))
	assert.Empty(t, mem.Results(), "rejected input produces no mapping results")
}

func TestReconcileRunsAreAppendOnly(t *testing.T) {
	cm, mem := newEngine(t, nil)
	ctx := context.Background()

	recs := []records.SourceRecord{{ID: "r1", Name: "Intro CS", RawCode: "CS101"}}
	first, err := cm.Reconcile(ctx, recs)
	require.NoError(t, err)
	second, err := cm.Reconcile(ctx, recs)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, mem.Results(), 2, "re-reconciling appends a new result, never edits the old one")

	mapping, err := cm.LatestMapping(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, mapping.SessionID)
}
