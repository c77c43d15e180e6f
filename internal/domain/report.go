package domain

import (
	"fmt"
	"time"
)

// BatchReport summarizes one full batch. Outcomes keep catalog input order;
// Errors and Warnings are flattened from the outcomes in that same order.
type BatchReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	Success    bool
	Outcomes   []JobOutcome
	Errors     []BuildError
	Warnings   []string
}

// Consistent reports whether the per-kind counts add up to the total.
func (r *BatchReport) Consistent() bool {
	return r.Succeeded+r.Failed+r.Skipped == r.Total
}

// Summary renders a one-line result for logs and notifications.
func (r *BatchReport) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d skipped (%d games in %s)",
		r.Succeeded, r.Failed, r.Skipped, r.Total, r.Duration.Round(time.Millisecond))
}

// Outcome returns the outcome for a game id, or false when absent.
func (r *BatchReport) Outcome(gameID string) (JobOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.GameID == gameID {
			return o, true
		}
	}
	return JobOutcome{}, false
}
