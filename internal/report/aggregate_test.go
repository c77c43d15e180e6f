package report

import (
	"reflect"
	"testing"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
)

var (
	testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(90 * time.Second)
)

func mixedOutcomes() []domain.JobOutcome {
	return []domain.JobOutcome{
		{GameID: "pong", Kind: domain.OutcomeSuccess, Revision: "abc123"},
		{
			GameID: "breakout",
			Kind:   domain.OutcomeFailed,
			Errors: []domain.BuildError{
				{GameID: "breakout", Phase: domain.PhaseClone, Msg: "repository not found"},
			},
		},
		{GameID: "tetris", Kind: domain.OutcomeSkipped, Warnings: []string{"already built"}},
		{
			GameID: "snake",
			Kind:   domain.OutcomeFailed,
			Errors: []domain.BuildError{
				{GameID: "snake", Phase: domain.PhaseBuild, Msg: "step 1 failed"},
				{GameID: "snake", Phase: domain.PhaseBuild, Msg: "panic: oh no"},
			},
		},
	}
}

func TestAggregate_Counts(t *testing.T) {
	r := Aggregate("batch-1", testStart, testEnd, mixedOutcomes())

	if r.Total != 4 {
		t.Errorf("Total = %d, want 4", r.Total)
	}
	if r.Succeeded != 1 || r.Failed != 2 || r.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/2/1", r.Succeeded, r.Failed, r.Skipped)
	}
	if !r.Consistent() {
		t.Error("Consistent() = false")
	}
	if r.Success {
		t.Error("Success = true with failed jobs")
	}
	if r.Duration != 90*time.Second {
		t.Errorf("Duration = %s, want 90s", r.Duration)
	}
}

func TestAggregate_Empty(t *testing.T) {
	r := Aggregate("batch-2", testStart, testStart, nil)

	if r.Total != 0 {
		t.Errorf("Total = %d, want 0", r.Total)
	}
	if !r.Success {
		t.Error("Success = false for an empty batch, want true")
	}
	if !r.Consistent() {
		t.Error("Consistent() = false")
	}
}

func TestAggregate_AllSucceed(t *testing.T) {
	outcomes := []domain.JobOutcome{
		{GameID: "pong", Kind: domain.OutcomeSuccess},
		{GameID: "tetris", Kind: domain.OutcomeSkipped},
	}
	r := Aggregate("batch-3", testStart, testEnd, outcomes)

	if !r.Success {
		t.Error("Success = false without failures, want true (skips do not fail a batch)")
	}
}

func TestAggregate_FlattensErrorsInOrder(t *testing.T) {
	r := Aggregate("batch-4", testStart, testEnd, mixedOutcomes())

	if len(r.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3", len(r.Errors))
	}
	wantGames := []string{"breakout", "snake", "snake"}
	for i, e := range r.Errors {
		if e.GameID != wantGames[i] {
			t.Errorf("Errors[%d].GameID = %q, want %q", i, e.GameID, wantGames[i])
		}
	}
	if r.Errors[0].Phase != domain.PhaseClone {
		t.Errorf("Errors[0].Phase = %s, want clone", r.Errors[0].Phase)
	}
	if r.Errors[2].Msg != "panic: oh no" {
		t.Errorf("Errors[2].Msg = %q, want the second snake error", r.Errors[2].Msg)
	}
}

func TestAggregate_PrefixesWarnings(t *testing.T) {
	r := Aggregate("batch-5", testStart, testEnd, mixedOutcomes())

	if len(r.Warnings) != 1 {
		t.Fatalf("len(Warnings) = %d, want 1", len(r.Warnings))
	}
	if r.Warnings[0] != "tetris: already built" {
		t.Errorf("Warnings[0] = %q, want %q", r.Warnings[0], "tetris: already built")
	}
}

func TestAggregate_PreservesOutcomeOrder(t *testing.T) {
	outcomes := mixedOutcomes()
	r := Aggregate("batch-6", testStart, testEnd, outcomes)

	for i := range outcomes {
		if r.Outcomes[i].GameID != outcomes[i].GameID {
			t.Errorf("Outcomes[%d] = %q, want %q", i, r.Outcomes[i].GameID, outcomes[i].GameID)
		}
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	a := Aggregate("batch-7", testStart, testEnd, mixedOutcomes())
	b := Aggregate("batch-7", testStart, testEnd, mixedOutcomes())

	if !reflect.DeepEqual(a, b) {
		t.Error("two aggregations of the same input differ")
	}
}
