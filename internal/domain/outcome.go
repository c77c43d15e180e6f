package domain

import (
	"fmt"
	"time"
)

// OutcomeKind classifies how a build job ended.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailed  OutcomeKind = "failed"
	OutcomeSkipped OutcomeKind = "skipped"
)

// State maps an outcome to the terminal job state it implies.
func (k OutcomeKind) State() JobState {
	switch k {
	case OutcomeSuccess:
		return JobSuccess
	case OutcomeFailed:
		return JobFailed
	case OutcomeSkipped:
		return JobSkipped
	}
	return JobFailed
}

// Phase names the stage of a build job an error belongs to.
type Phase string

const (
	PhaseClone    Phase = "clone"
	PhaseCheckout Phase = "checkout"
	PhaseBuild    Phase = "build"
)

// JobState tracks a job through a batch.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobSuccess JobState = "success"
	JobFailed  JobState = "failed"
	JobSkipped JobState = "skipped"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobSuccess, JobFailed, JobSkipped:
		return true
	}
	return false
}

// BuildError records one failure inside a job, with provenance.
type BuildError struct {
	GameID string
	Phase  Phase
	Msg    string
	At     time.Time
}

func (e BuildError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.GameID, e.Phase, e.Msg)
}

// JobOutcome is the immutable record of one finished job. Exactly one is
// produced per game in a batch.
type JobOutcome struct {
	GameID      string
	Kind        OutcomeKind
	Duration    time.Duration
	Errors      []BuildError
	Warnings    []string
	Revision    string    // empty when capture failed or the job never cloned
	AttemptedAt time.Time // zero for jobs skipped before starting
}

// Failed reports whether the job ended in failure.
func (o JobOutcome) Failed() bool {
	return o.Kind == OutcomeFailed
}
