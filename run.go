package coursemap

import (
	"context"
	"fmt"

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/logging"
	"github.com/coursekit/coursemap/pkg/match"
	"github.com/coursekit/coursemap/pkg/prompt"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
	"github.com/coursekit/coursemap/pkg/validate"
)

// Reconcile implements Coursemap.
//
// Every path finalizes and commits exactly one session, caller faults
// included: an input validation failure commits a failed session with no
// results, same as any other whole-run failure. Mapping results are only
// committed on a fully successful run.
func (c *coursemap) Reconcile(ctx context.Context, recs []records.SourceRecord) (*session.Session, error) {
	rec := session.NewRecorder(len(recs))
	ctx = logging.WithSession(logging.WithLogger(ctx, c.config.logger), rec.SessionID())

	if err := validateInput(recs); err != nil {
		return c.failRun(ctx, rec, err)
	}
	logging.Ctx(ctx).Info().
		Int("records", len(recs)).
		Int("catalog_size", c.idx.Len()).
		Msg("reconciliation run started")

	det := match.Deterministic(c.idx, recs)
	for _, m := range det.Matched {
		rec.Result(m.Record, m.Entry.NormalizedCode(), m.Confidence, m.Method, session.StatusMapped, nil, "")
	}
	logging.Ctx(ctx).Debug().
		Int("matched", len(det.Matched)).
		Int("unmatched", len(det.Unmatched)).
		Msg("deterministic stage complete")

	if len(det.Unmatched) > 0 {
		if err := c.semanticStage(ctx, rec, det.Unmatched); err != nil {
			return c.failRun(ctx, rec, err)
		}
	}

	return c.commitRun(ctx, rec, rec.Results())
}

// validateInput checks the batch before any matching starts.
func validateInput(recs []records.SourceRecord) error {
	if len(recs) == 0 {
		return errors.NewInputValidationError("records", nil, "no records to reconcile")
	}
	seen := make(map[string]bool, len(recs))
	for i, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return errors.NewInputValidationError("records", i,
				"duplicate source record id "+r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// semanticStage resolves deterministically unmatched records through the
// external matching service, one bounded batch at a time. Any transport or
// context failure aborts the whole run; validation failures inside a
// response only degrade the affected candidates.
func (c *coursemap) semanticStage(ctx context.Context, rec *session.Recorder, unmatched []records.SourceRecord) error {
	if c.config.client == nil {
		rec.Warn("no semantic matching client configured; unmatched records left unmapped")
		for _, r := range unmatched {
			rec.Unmapped(r, "no deterministic match and semantic matching is not configured")
		}
		return nil
	}

	ctx = logging.WithStage(ctx, "semantic")
	promptCfg := prompt.Config{
		ConfidenceFlagThreshold: c.config.confidenceThreshold,
		MaxBatchSize:            c.config.maxBatchSize,
		ByteBudget:              c.config.byteBudget,
		ExampleEntries:          prompt.DefaultConfig().ExampleEntries,
	}
	validateCfg := validate.Config{ConfidenceFlagThreshold: c.config.confidenceThreshold}

	var candidates []validate.Candidate
	var notFound []validate.NotFound

	for start := 0; start < len(unmatched); start += c.config.maxBatchSize {
		if err := ctx.Err(); err != nil {
			return c.runContextError(err)
		}

		end := start + c.config.maxBatchSize
		if end > len(unmatched) {
			end = len(unmatched)
		}
		batch := unmatched[start:end]

		pctx, err := prompt.Build(c.idx, batch, promptCfg)
		if err != nil {
			return err
		}
		payload, err := pctx.Bytes()
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.matchTimeout)
		resp, err := c.config.client.Match(callCtx, payload)
		cancel()
		rec.ExternalCall(c.config.client.Endpoint(), len(payload), len(resp), err)
		if err != nil {
			return err
		}
		// The run's own context may have been canceled while the call was
		// in flight; a response that arrives after cancellation is discarded.
		if err := ctx.Err(); err != nil {
			return c.runContextError(err)
		}

		out := validate.Response(resp, c.idx, batch, validateCfg, rec)
		candidates = append(candidates, out.Candidates...)
		notFound = append(notFound, out.NotFound...)
	}

	validate.ScanAnomalies(candidates, rec)

	for _, cand := range candidates {
		rec.Result(cand.Record, cand.Code, cand.Confidence, session.MethodSemanticMatch,
			cand.Status, cand.Alternatives, cand.Reasoning)
	}
	for _, nf := range notFound {
		rec.Unmapped(nf.Record, nf.Reason)
	}
	return nil
}

// runContextError maps a run context failure onto the error taxonomy.
func (c *coursemap) runContextError(err error) error {
	endpoint := c.config.client.Endpoint()
	if err == context.DeadlineExceeded {
		return errors.NewExternalCallError(endpoint, 0, "run deadline exceeded",
			fmt.Errorf("%w: %w", errors.ErrTimeout, err))
	}
	return errors.NewExternalCallError(endpoint, 0, "run canceled",
		fmt.Errorf("%w: %w", errors.ErrCanceled, err))
}

// commitRun finalizes the session and commits it with its results.
func (c *coursemap) commitRun(ctx context.Context, rec *session.Recorder, results []session.MappingResult) (*session.Session, error) {
	sess := rec.Finalize()
	if err := c.config.store.CommitRun(ctx, results, sess); err != nil {
		logging.Ctx(ctx).Err(err).Msg("run commit failed")
		return sess, err
	}
	logging.Ctx(ctx).Info().
		Int("mapped", sess.Stats.ExactMatches+sess.Stats.PrefixMatches+sess.Stats.SemanticMatches).
		Int("flagged", sess.Stats.Flagged).
		Int("unmapped", sess.Stats.Unmapped).
		Int("rejections", sess.Stats.ValidationRejections).
		Msg("reconciliation run committed")
	return sess, nil
}

// failRun marks the session failed and commits it without results, so the
// failed run stays auditable while its partial matches are discarded.
func (c *coursemap) failRun(ctx context.Context, rec *session.Recorder, runErr error) (*session.Session, error) {
	logging.Ctx(ctx).Err(runErr).Msg("reconciliation run failed")
	rec.Fail(runErr)
	sess := rec.Finalize()

	// Commit on a fresh context: the run's context may be the very thing
	// that failed, and the audit record must survive it.
	if err := c.config.store.CommitRun(context.WithoutCancel(ctx), nil, sess); err != nil {
		logging.Ctx(ctx).Err(err).Msg("failed run could not be committed")
	}
	return sess, runErr
}
