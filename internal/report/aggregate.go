// Package report reduces job outcomes into a batch report.
package report

import (
	"fmt"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
)

// Aggregate folds outcomes into a BatchReport. It is a pure reduction: the
// same inputs always produce the same report, and outcome order is kept.
// Success means no job failed; an empty batch is successful.
func Aggregate(id string, started, finished time.Time, outcomes []domain.JobOutcome) *domain.BatchReport {
	r := &domain.BatchReport{
		ID:         id,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		Total:      len(outcomes),
		Outcomes:   outcomes,
	}

	for _, o := range outcomes {
		switch o.Kind {
		case domain.OutcomeSuccess:
			r.Succeeded++
		case domain.OutcomeFailed:
			r.Failed++
		case domain.OutcomeSkipped:
			r.Skipped++
		}
		r.Errors = append(r.Errors, o.Errors...)
		for _, w := range o.Warnings {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", o.GameID, w))
		}
	}

	r.Success = r.Failed == 0
	return r
}
