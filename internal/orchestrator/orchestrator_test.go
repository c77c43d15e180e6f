package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
)

type fakeFetcher struct {
	mu          sync.Mutex
	clones      []string          // game ids in clone order
	checkouts   map[string]string // game id -> ref
	cloneErr    map[string]error
	checkoutErr map[string]error
	revisionErr error
	cloneDelay  time.Duration
	active      int32
	maxActive   int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		checkouts:   map[string]string{},
		cloneErr:    map[string]error{},
		checkoutErr: map[string]error{},
	}
}

func (f *fakeFetcher) Clone(ctx context.Context, repoURL, dir string) error {
	cur := atomic.AddInt32(&f.active, 1)
	for {
		max := atomic.LoadInt32(&f.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxActive, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.active, -1)

	if f.cloneDelay > 0 {
		time.Sleep(f.cloneDelay)
	}

	id := filepath.Base(dir)
	f.mu.Lock()
	f.clones = append(f.clones, id)
	f.mu.Unlock()

	if err := f.cloneErr[id]; err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

func (f *fakeFetcher) Checkout(ctx context.Context, dir, ref string) error {
	id := filepath.Base(dir)
	f.mu.Lock()
	f.checkouts[id] = ref
	f.mu.Unlock()
	return f.checkoutErr[id]
}

func (f *fakeFetcher) LatestRevision(ctx context.Context, dir string) (string, error) {
	if f.revisionErr != nil {
		return "", f.revisionErr
	}
	return "rev-" + filepath.Base(dir), nil
}

func (f *fakeFetcher) clonedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clones...)
}

type fakeRunner struct {
	mu      sync.Mutex
	runs    map[string][]string // game id -> raw steps
	stepErr map[string]error
	panicOn string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: map[string][]string{}, stepErr: map[string]error{}}
}

func (r *fakeRunner) RunSteps(ctx context.Context, dir string, steps []domain.BuildStep) error {
	id := filepath.Base(dir)
	if id == r.panicOn {
		panic("exploded in build")
	}
	raws := make([]string, 0, len(steps))
	for _, s := range steps {
		raws = append(raws, s.Raw)
	}
	r.mu.Lock()
	r.runs[id] = raws
	r.mu.Unlock()
	return r.stepErr[id]
}

func testOrchestrator(f Fetcher, r StepRunner) *Orchestrator {
	return New(f, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func spec(id string) domain.GameSpec {
	return domain.GameSpec{
		ID:      id,
		Name:    id,
		RepoURL: "https://github.com/openarcade/" + id,
	}
}

func specMap(ids ...string) map[string]domain.GameSpec {
	m := make(map[string]domain.GameSpec, len(ids))
	for _, id := range ids {
		m[id] = spec(id)
	}
	return m
}

func testOpts(t *testing.T) Options {
	t.Helper()
	return Options{
		OutputRoot:  filepath.Join(t.TempDir(), "site"),
		Concurrency: 2,
	}
}

func mustConsistent(t *testing.T, r *domain.BatchReport) {
	t.Helper()
	if !r.Consistent() {
		t.Errorf("report counts %d+%d+%d do not add up to %d",
			r.Succeeded, r.Failed, r.Skipped, r.Total)
	}
}

func TestRun_AllSucceed(t *testing.T) {
	fetcher := newFakeFetcher()
	runner := newFakeRunner()
	o := testOrchestrator(fetcher, runner)

	specs := specMap("pong", "breakout", "tetris")
	withSteps := specs["pong"]
	withSteps.BuildSteps = []string{"npm install", "npm run build"}
	specs["pong"] = withSteps

	r, err := o.Run(context.Background(), specs, testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Total != 3 || r.Succeeded != 3 {
		t.Errorf("got %d/%d succeeded, want 3/3", r.Succeeded, r.Total)
	}
	if !r.Success {
		t.Error("Success = false, want true")
	}
	mustConsistent(t, r)

	for _, out := range r.Outcomes {
		if out.Kind != domain.OutcomeSuccess {
			t.Errorf("%s: Kind = %s, want success", out.GameID, out.Kind)
		}
		if out.Revision != "rev-"+out.GameID {
			t.Errorf("%s: Revision = %q, want rev-%s", out.GameID, out.Revision, out.GameID)
		}
		if out.AttemptedAt.IsZero() {
			t.Errorf("%s: AttemptedAt is zero", out.GameID)
		}
	}

	if got := runner.runs["pong"]; len(got) != 2 || got[0] != "npm install" {
		t.Errorf("pong steps = %v, want the two parsed steps", got)
	}
	if _, ran := runner.runs["tetris"]; ran {
		t.Error("tetris has no build steps but the runner was invoked")
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	o := testOrchestrator(newFakeFetcher(), newFakeRunner())

	root := filepath.Join(t.TempDir(), "nested", "site")
	r, err := o.Run(context.Background(), nil, Options{OutputRoot: root})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Total != 0 {
		t.Errorf("Total = %d, want 0", r.Total)
	}
	if !r.Success {
		t.Error("Success = false for empty batch, want true")
	}
	mustConsistent(t, r)
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Error("empty batch touched the filesystem")
	}
}

func TestRun_OutputRootNotCreatable(t *testing.T) {
	o := testOrchestrator(newFakeFetcher(), newFakeRunner())

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := o.Run(context.Background(), specMap("pong"), Options{
		OutputRoot: filepath.Join(blocker, "site"),
	})
	if err == nil {
		t.Fatal("Run() error = nil, want infrastructure error")
	}
	if r != nil {
		t.Error("Run() returned a report alongside an infrastructure error")
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.cloneErr["breakout"] = fmt.Errorf("git clone: repository not found")
	o := testOrchestrator(fetcher, newFakeRunner())
	opts := testOpts(t)

	r, err := o.Run(context.Background(), specMap("pong", "breakout", "tetris"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Succeeded != 2 || r.Failed != 1 {
		t.Errorf("got %d succeeded %d failed, want 2/1", r.Succeeded, r.Failed)
	}
	if r.Success {
		t.Error("Success = true with a failed job")
	}
	mustConsistent(t, r)

	failed, ok := r.Outcome("breakout")
	if !ok {
		t.Fatal("breakout outcome missing")
	}
	if len(failed.Errors) != 1 {
		t.Fatalf("breakout errors = %d, want exactly 1", len(failed.Errors))
	}
	if failed.Errors[0].Phase != domain.PhaseClone {
		t.Errorf("Phase = %s, want clone", failed.Errors[0].Phase)
	}

	for _, id := range []string{"pong", "tetris"} {
		if _, err := os.Stat(filepath.Join(opts.OutputRoot, id)); err != nil {
			t.Errorf("%s directory missing after sibling failure: %v", id, err)
		}
	}
}

func TestRun_PanicIsolation(t *testing.T) {
	runner := newFakeRunner()
	runner.panicOn = "breakout"
	o := testOrchestrator(newFakeFetcher(), runner)

	specs := specMap("pong", "breakout", "tetris")
	for id, s := range specs {
		s.BuildSteps = []string{"make"}
		specs[id] = s
	}

	r, err := o.Run(context.Background(), specs, testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Succeeded != 2 || r.Failed != 1 {
		t.Errorf("got %d succeeded %d failed, want 2/1", r.Succeeded, r.Failed)
	}
	mustConsistent(t, r)

	failed, _ := r.Outcome("breakout")
	if failed.Kind != domain.OutcomeFailed {
		t.Fatalf("breakout Kind = %s, want failed", failed.Kind)
	}
	if len(failed.Errors) != 1 {
		t.Fatalf("breakout errors = %d, want 1", len(failed.Errors))
	}
	if failed.Errors[0].Phase != domain.PhaseBuild {
		t.Errorf("Phase = %s, want build", failed.Errors[0].Phase)
	}
	if !strings.Contains(failed.Errors[0].Msg, "panic: exploded in build") {
		t.Errorf("Msg = %q, want the panic message", failed.Errors[0].Msg)
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, newFakeRunner())

	specs := specMap("pong")
	specs["bad-scheme"] = domain.GameSpec{ID: "bad-scheme", RepoURL: "ssh://git@github.com/x/y"}
	specs["bad-step"] = domain.GameSpec{
		ID:         "bad-step",
		RepoURL:    "https://github.com/openarcade/bad-step",
		BuildSteps: []string{"   "},
	}

	r, err := o.Run(context.Background(), specs, testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Succeeded != 1 || r.Failed != 2 {
		t.Errorf("got %d succeeded %d failed, want 1/2", r.Succeeded, r.Failed)
	}
	mustConsistent(t, r)

	scheme, _ := r.Outcome("bad-scheme")
	if len(scheme.Errors) != 1 || scheme.Errors[0].Phase != domain.PhaseClone {
		t.Errorf("bad-scheme errors = %+v, want one clone-phase error", scheme.Errors)
	}
	step, _ := r.Outcome("bad-step")
	if len(step.Errors) != 1 || step.Errors[0].Phase != domain.PhaseBuild {
		t.Errorf("bad-step errors = %+v, want one build-phase error", step.Errors)
	}

	for _, id := range fetcher.clonedIDs() {
		if id != "pong" {
			t.Errorf("cloned %q, invalid specs must fail before any I/O", id)
		}
	}
}

func TestRun_ChecksOutBranch(t *testing.T) {
	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, newFakeRunner())

	specs := specMap("pong", "breakout")
	branched := specs["breakout"]
	branched.Branch = "stable"
	specs["breakout"] = branched

	r, err := o.Run(context.Background(), specs, testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, want 2", r.Succeeded)
	}

	if got := fetcher.checkouts["breakout"]; got != "stable" {
		t.Errorf("breakout checkout ref = %q, want stable", got)
	}
	if _, called := fetcher.checkouts["pong"]; called {
		t.Error("pong has no branch but Checkout was called")
	}
}

func TestRun_CheckoutFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.checkoutErr["pong"] = fmt.Errorf("git checkout stable: unknown ref")
	o := testOrchestrator(fetcher, newFakeRunner())

	specs := specMap("pong")
	s := specs["pong"]
	s.Branch = "stable"
	specs["pong"] = s

	r, err := o.Run(context.Background(), specs, testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	failed, _ := r.Outcome("pong")
	if failed.Kind != domain.OutcomeFailed {
		t.Fatalf("Kind = %s, want failed", failed.Kind)
	}
	if len(failed.Errors) != 1 || failed.Errors[0].Phase != domain.PhaseCheckout {
		t.Errorf("errors = %+v, want one checkout-phase error", failed.Errors)
	}
}

func TestRun_RevisionCaptureNonFatal(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.revisionErr = fmt.Errorf("rev-parse exploded")
	o := testOrchestrator(fetcher, newFakeRunner())

	r, err := o.Run(context.Background(), specMap("pong"), testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, _ := r.Outcome("pong")
	if out.Kind != domain.OutcomeSuccess {
		t.Fatalf("Kind = %s, want success despite revision failure", out.Kind)
	}
	if out.Revision != "" {
		t.Errorf("Revision = %q, want empty", out.Revision)
	}
	found := false
	for _, w := range out.Warnings {
		if strings.Contains(w, "could not capture revision") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a revision capture warning", out.Warnings)
	}
}

func TestRun_SkipExisting(t *testing.T) {
	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, newFakeRunner())
	opts := testOpts(t)
	opts.SkipExisting = true

	if err := os.MkdirAll(filepath.Join(opts.OutputRoot, "breakout"), 0755); err != nil {
		t.Fatal(err)
	}

	r, err := o.Run(context.Background(), specMap("pong", "breakout"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Succeeded != 1 || r.Skipped != 1 {
		t.Errorf("got %d succeeded %d skipped, want 1/1", r.Succeeded, r.Skipped)
	}
	if !r.Success {
		t.Error("Success = false, skips must not fail a batch")
	}
	mustConsistent(t, r)

	skipped, _ := r.Outcome("breakout")
	if skipped.Kind != domain.OutcomeSkipped {
		t.Fatalf("breakout Kind = %s, want skipped", skipped.Kind)
	}
	if !skipped.AttemptedAt.IsZero() {
		t.Error("skipped job has an attempt timestamp")
	}
	for _, id := range fetcher.clonedIDs() {
		if id == "breakout" {
			t.Error("breakout was cloned despite being skipped")
		}
	}
}

func TestRun_StaleDirReplaced(t *testing.T) {
	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, newFakeRunner())
	opts := testOpts(t)

	stale := filepath.Join(opts.OutputRoot, "pong")
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(stale, "stale-marker")
	if err := os.WriteFile(marker, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := o.Run(context.Background(), specMap("pong"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.Succeeded != 1 {
		t.Fatalf("Succeeded = %d, want 1", r.Succeeded)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("stale content survived the rebuild")
	}
}

func TestRun_PreservesInputOrder(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.cloneDelay = 5 * time.Millisecond
	o := testOrchestrator(fetcher, newFakeRunner())

	order := []string{"zelda-like", "pong", "asteroids", "breakout", "tetris", "snake"}
	opts := testOpts(t)
	opts.Concurrency = 3
	opts.Order = order

	r, err := o.Run(context.Background(), specMap(order...), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, id := range order {
		if r.Outcomes[i].GameID != id {
			t.Errorf("Outcomes[%d] = %q, want %q", i, r.Outcomes[i].GameID, id)
		}
	}
}

func TestRun_OrderAppendsMissing(t *testing.T) {
	o := testOrchestrator(newFakeFetcher(), newFakeRunner())
	opts := testOpts(t)
	opts.Order = []string{"tetris", "no-such-game"}

	r, err := o.Run(context.Background(), specMap("pong", "breakout", "tetris"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := make([]string, len(r.Outcomes))
	for i, out := range r.Outcomes {
		got[i] = out.GameID
	}
	want := []string{"tetris", "breakout", "pong"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.cloneDelay = 50 * time.Millisecond
	o := testOrchestrator(fetcher, newFakeRunner())

	opts := testOpts(t)
	opts.Concurrency = 2

	ids := []string{"a1", "b2", "c3", "d4", "e5", "f6"}
	r, err := o.Run(context.Background(), specMap(ids...), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.Succeeded != len(ids) {
		t.Fatalf("Succeeded = %d, want %d", r.Succeeded, len(ids))
	}

	max := atomic.LoadInt32(&fetcher.maxActive)
	if max > 2 {
		t.Errorf("max concurrent clones = %d, want at most 2", max)
	}
	if max < 2 {
		t.Errorf("max concurrent clones = %d, want the pool saturated at 2", max)
	}
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, newFakeRunner())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := o.Run(ctx, specMap("pong", "breakout"), testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", r.Skipped)
	}
	mustConsistent(t, r)
	for _, out := range r.Outcomes {
		if out.Kind != domain.OutcomeSkipped {
			t.Errorf("%s Kind = %s, want skipped", out.GameID, out.Kind)
		}
		if len(out.Warnings) == 0 || !strings.Contains(out.Warnings[0], "canceled") {
			t.Errorf("%s Warnings = %v, want a canceled warning", out.GameID, out.Warnings)
		}
	}
	if got := fetcher.clonedIDs(); len(got) != 0 {
		t.Errorf("cloned %v after cancellation, want nothing", got)
	}
}

func TestRun_Events(t *testing.T) {
	o := testOrchestrator(newFakeFetcher(), newFakeRunner())

	var mu sync.Mutex
	var events []Event
	opts := testOpts(t)
	opts.Concurrency = 1
	opts.Events = func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	if _, err := o.Run(context.Background(), specMap("pong"), opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantStates := []domain.JobState{domain.JobPending, domain.JobRunning, domain.JobSuccess}
	if len(events) != len(wantStates) {
		t.Fatalf("got %d events, want %d", len(events), len(wantStates))
	}
	for i, want := range wantStates {
		if events[i].State != want {
			t.Errorf("events[%d].State = %s, want %s", i, events[i].State, want)
		}
	}
	terminal := events[len(events)-1]
	if terminal.Outcome == nil {
		t.Fatal("terminal event has no outcome")
	}
	if terminal.Outcome.Revision != "rev-pong" {
		t.Errorf("terminal outcome revision = %q, want rev-pong", terminal.Outcome.Revision)
	}
}

func TestRun_BatchID(t *testing.T) {
	o := testOrchestrator(newFakeFetcher(), newFakeRunner())

	opts := testOpts(t)
	opts.BatchID = "fixed-id"
	r, err := o.Run(context.Background(), specMap("pong"), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", r.ID)
	}

	r2, err := o.Run(context.Background(), specMap("pong"), testOpts(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(r2.ID) != 36 {
		t.Errorf("generated ID = %q, want a uuid", r2.ID)
	}
}
