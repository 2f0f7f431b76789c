package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	assert.Equal(t, Default(), FromContext(nil)) //nolint:staticcheck // nil context fallback is the point
}

func TestWithLoggerRoundTrip(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := WithLogger(context.Background(), tl.Logger)

	FromContext(ctx).Info().Msg("from context")
	assert.True(t, tl.Contains("from context"))
}

func TestWithSessionAddsField(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := WithLogger(context.Background(), tl.Logger)
	ctx = WithSession(ctx, "sess-123")

	Ctx(ctx).Info().Msg("tagged")
	assert.True(t, tl.Contains("sess-123"))
	assert.True(t, tl.Contains("session_id"))
}

func TestWithStageAddsField(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := WithLogger(context.Background(), tl.Logger)
	ctx = WithStage(ctx, "deterministic")

	Ctx(ctx).Debug().Msg("stage log")
	assert.True(t, tl.Contains("deterministic"))
}
