// Package runner executes a game's build steps inside its checkout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/openarcade/gameshelf/internal/domain"
)

// stderr carried in a StepError is capped so report rows stay readable
const maxStderr = 2048

// StepError reports the build step that broke a build.
type StepError struct {
	Index    int    // zero-based position in the step list
	Step     string // raw command line
	ExitCode int    // -1 when the program failed to start
	Stderr   string
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %d %q", e.Index+1, e.Step)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(": exit %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner runs pre-parsed build steps with separate output capture.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With("component", "runner")}
}

// RunSteps executes steps in order inside dir. The first step that exits
// non-zero or fails to start aborts the remainder; the returned error is a
// *StepError identifying it. No retries.
func (r *Runner) RunSteps(ctx context.Context, dir string, steps []domain.BuildStep) error {
	for i, step := range steps {
		if err := r.runStep(ctx, dir, i, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, dir string, index int, step domain.BuildStep) error {
	r.logger.Debug("running build step", "dir", dir, "step", step.Raw)

	cmd := exec.CommandContext(ctx, step.Program, step.Args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &StepError{
			Index:    index,
			Step:     step.Raw,
			ExitCode: exitCode,
			Stderr:   tail(strings.TrimSpace(stderr.String()), maxStderr),
			Err:      err,
		}
	}
	return nil
}

// tail keeps the last max bytes of s.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
