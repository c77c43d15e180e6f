package schedule

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},    // 3 AM daily
		{"0 12 * * 1-5", false}, // noon weekdays
		{"*/5 * * * *", false},  // every 5 minutes
		{"invalid", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := ParseCron(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestNew_RejectsBadExpression(t *testing.T) {
	if _, err := New("not a cron", testLogger()); err == nil {
		t.Error("New with invalid expression should error")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	sched, err := New("0 3 * * *", testLogger())
	if err != nil {
		t.Fatal(err)
	}

	next := sched.NextRun()
	if next.IsZero() {
		t.Error("NextRun should return a time")
	}

	// Should be in the future
	if !next.After(time.Now()) {
		t.Error("NextRun should be in the future")
	}
}

func TestScheduler_ShouldRun(t *testing.T) {
	sched, err := New("* * * * *", testLogger()) // Every minute
	if err != nil {
		t.Fatal(err)
	}

	// Mark as last run two minutes ago
	sched.lastRun = time.Now().Add(-2 * time.Minute)

	if !sched.ShouldRun() {
		t.Error("Should run after cron interval passed")
	}
}

func TestScheduler_ShouldRunWhileRunning(t *testing.T) {
	sched, err := New("* * * * *", testLogger())
	if err != nil {
		t.Fatal(err)
	}

	sched.lastRun = time.Now().Add(-2 * time.Minute)
	sched.MarkRunning()

	if sched.ShouldRun() {
		t.Error("Should not run while a rebuild is in flight")
	}

	sched.MarkComplete()
	if sched.ShouldRun() {
		t.Error("Should not run again right after completion")
	}
}
