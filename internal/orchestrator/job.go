package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
)

// runJobSafe runs one job and converts a panic into a failed outcome so a
// broken build step handler can never take down sibling jobs.
func (o *Orchestrator) runJobSafe(ctx context.Context, spec domain.GameSpec, opts Options) (outcome domain.JobOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job panicked", "game", spec.ID, "panic", r)
			outcome = domain.JobOutcome{
				GameID:      spec.ID,
				Kind:        domain.OutcomeFailed,
				AttemptedAt: start,
				Errors: []domain.BuildError{{
					GameID: spec.ID,
					Phase:  domain.PhaseBuild,
					Msg:    fmt.Sprintf("panic: %v", r),
					At:     time.Now(),
				}},
			}
		}
		if !outcome.AttemptedAt.IsZero() {
			outcome.Duration = time.Since(start)
		}
	}()
	return o.runJob(ctx, spec, opts, start)
}

// runJob walks one game through its phases: skip check, validate, clone,
// checkout, revision capture, build steps. The first failing phase decides
// the outcome; revision capture alone is best effort.
func (o *Orchestrator) runJob(ctx context.Context, spec domain.GameSpec, opts Options, start time.Time) domain.JobOutcome {
	outcome := domain.JobOutcome{GameID: spec.ID}
	logger := o.logger.With("game", spec.ID)
	dir := filepath.Join(opts.OutputRoot, spec.ID)

	fail := func(phase domain.Phase, msg string) domain.JobOutcome {
		logger.Warn("job failed", "phase", phase, "error", msg)
		outcome.Kind = domain.OutcomeFailed
		outcome.Errors = append(outcome.Errors, domain.BuildError{
			GameID: spec.ID,
			Phase:  phase,
			Msg:    msg,
			At:     time.Now(),
		})
		return outcome
	}

	if opts.SkipExisting {
		if _, err := os.Stat(dir); err == nil {
			logger.Info("skipping, output directory exists", "dir", dir)
			outcome.Kind = domain.OutcomeSkipped
			outcome.Warnings = append(outcome.Warnings, "output directory already exists")
			return outcome
		}
	}

	outcome.AttemptedAt = start

	steps, warnings, err := spec.Validate()
	outcome.Warnings = append(outcome.Warnings, warnings...)
	if err != nil {
		phase := domain.PhaseClone
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			phase = verr.Phase
		}
		return fail(phase, err.Error())
	}

	// this job owns dir for the whole batch; anything there is stale
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fail(domain.PhaseClone, fmt.Sprintf("clear stale directory: %v", err))
		}
	}

	if err := o.fetcher.Clone(ctx, spec.RepoURL, dir); err != nil {
		return fail(domain.PhaseClone, err.Error())
	}

	if spec.Branch != "" {
		if err := o.fetcher.Checkout(ctx, dir, spec.Branch); err != nil {
			return fail(domain.PhaseCheckout, err.Error())
		}
	}

	if rev, err := o.fetcher.LatestRevision(ctx, dir); err != nil {
		logger.Warn("revision capture failed", "error", err)
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("could not capture revision: %v", err))
	} else {
		outcome.Revision = rev
	}

	if len(steps) > 0 {
		if err := o.runner.RunSteps(ctx, dir, steps); err != nil {
			return fail(domain.PhaseBuild, err.Error())
		}
	}

	logger.Info("built", "revision", outcome.Revision, "duration", time.Since(start).Round(time.Millisecond))
	outcome.Kind = domain.OutcomeSuccess
	return outcome
}
