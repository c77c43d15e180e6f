package api

import (
	"log/slog"
	"sync"
)

// Rebuilder serializes rebuild requests. One rebuild runs at a time; triggers
// that arrive while one is in flight coalesce into a single follow-up run, so
// a burst of file saves costs at most one extra build.
type Rebuilder struct {
	run    func() error
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	queued  bool
}

// NewRebuilder wraps a rebuild function. run is invoked from a background
// goroutine and must be safe to call repeatedly.
func NewRebuilder(run func() error, logger *slog.Logger) *Rebuilder {
	return &Rebuilder{
		run:    run,
		logger: logger.With("component", "rebuild"),
	}
}

// Trigger requests a rebuild and returns immediately.
func (b *Rebuilder) Trigger(reason string) {
	b.mu.Lock()
	if b.running {
		b.queued = true
		b.mu.Unlock()
		b.logger.Info("rebuild queued", "reason", reason)
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.loop(reason)
}

func (b *Rebuilder) loop(reason string) {
	for {
		b.logger.Info("rebuild started", "reason", reason)
		if err := b.run(); err != nil {
			b.logger.Error("rebuild failed", "error", err)
		}

		b.mu.Lock()
		if !b.queued {
			b.running = false
			b.mu.Unlock()
			return
		}
		b.queued = false
		b.mu.Unlock()
		reason = "queued"
	}
}

// Running reports whether a rebuild is in flight.
func (b *Rebuilder) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
