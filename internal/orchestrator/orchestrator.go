// Package orchestrator runs a batch of game build jobs on a bounded worker
// pool and folds the results into a batch report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/report"
)

// Fetcher is the revision control side of a job.
type Fetcher interface {
	Clone(ctx context.Context, repoURL, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
	LatestRevision(ctx context.Context, dir string) (string, error)
}

// StepRunner executes a game's build steps inside its checkout.
type StepRunner interface {
	RunSteps(ctx context.Context, dir string, steps []domain.BuildStep) error
}

// Event reports a job state change. Terminal events carry the outcome.
type Event struct {
	GameID  string
	State   domain.JobState
	Outcome *domain.JobOutcome
}

// Options control one batch run.
type Options struct {
	// OutputRoot is the directory games are built under, one subdirectory
	// per game id.
	OutputRoot string

	// Concurrency caps how many jobs run at once. Zero or less means one
	// worker per CPU.
	Concurrency int

	// Order fixes the report order. Ids missing from the batch are ignored,
	// games absent from the list are appended sorted.
	Order []string

	// SkipExisting skips games whose directory already exists under the
	// output root instead of rebuilding them.
	SkipExisting bool

	// Events, when set, receives every job state change. It is called from
	// worker goroutines and must be safe for concurrent use.
	Events func(Event)

	// BatchID overrides the generated batch id.
	BatchID string
}

// Orchestrator drives batches. One instance can run many batches.
type Orchestrator struct {
	fetcher Fetcher
	runner  StepRunner
	logger  *slog.Logger
}

// New creates an Orchestrator.
func New(fetcher Fetcher, runner StepRunner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		runner:  runner,
		logger:  logger.With("component", "orchestrator"),
	}
}

// Run builds every game in specs and returns the batch report. Per-game
// failures are data in the report, never an error; the returned error is
// reserved for infrastructure problems that abort the whole batch, like an
// output root that cannot be created. An empty specs map is a successful
// no-op that touches nothing on disk.
func (o *Orchestrator) Run(ctx context.Context, specs map[string]domain.GameSpec, opts Options) (*domain.BatchReport, error) {
	batchID := opts.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}
	started := time.Now()

	if len(specs) == 0 {
		return report.Aggregate(batchID, started, time.Now(), nil), nil
	}

	if opts.OutputRoot == "" {
		return nil, fmt.Errorf("output root not set")
	}
	if err := os.MkdirAll(opts.OutputRoot, 0755); err != nil {
		return nil, fmt.Errorf("create output root %s: %w", opts.OutputRoot, err)
	}

	order := buildOrder(specs, opts.Order)
	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	o.logger.Info("starting batch", "batch", batchID, "games", len(order), "workers", workers)

	type job struct {
		idx  int
		spec domain.GameSpec
	}
	jobs := make(chan job, len(order))
	outcomes := make([]domain.JobOutcome, len(order))

	for i, id := range order {
		o.emit(opts, Event{GameID: id, State: domain.JobPending})
		jobs <- job{idx: i, spec: specs[id]}
	}
	close(jobs)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				o.emit(opts, Event{GameID: j.spec.ID, State: domain.JobRunning})

				var outcome domain.JobOutcome
				if ctx.Err() != nil {
					outcome = domain.JobOutcome{
						GameID:   j.spec.ID,
						Kind:     domain.OutcomeSkipped,
						Warnings: []string{"canceled before start"},
					}
				} else {
					outcome = o.runJobSafe(ctx, j.spec, opts)
				}

				outcomes[j.idx] = outcome
				o.emit(opts, Event{GameID: j.spec.ID, State: outcome.Kind.State(), Outcome: &outcome})
			}
		}()
	}
	wg.Wait()

	r := report.Aggregate(batchID, started, time.Now(), outcomes)
	o.logger.Info("batch finished",
		"batch", batchID,
		"succeeded", r.Succeeded,
		"failed", r.Failed,
		"skipped", r.Skipped,
		"duration", r.Duration.Round(time.Millisecond))
	return r, nil
}

func (o *Orchestrator) emit(opts Options, ev Event) {
	if opts.Events != nil {
		opts.Events(ev)
	}
}

// buildOrder returns every spec id exactly once, honoring the requested
// order first and appending the rest sorted.
func buildOrder(specs map[string]domain.GameSpec, order []string) []string {
	out := make([]string, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, id := range order {
		if _, ok := specs[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var rest []string
	for id := range specs {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
