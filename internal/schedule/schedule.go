// Package schedule triggers periodic rebuilds from a cron expression.
package schedule

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages scheduled rebuild runs
type Scheduler struct {
	expr     string
	sched    cron.Schedule
	lastRun  time.Time
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	logger   *slog.Logger
}

// ParseCron parses a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// New creates a scheduler for the given cron expression.
func New(expr string, logger *slog.Logger) (*Scheduler, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		expr:     expr,
		sched:    sched,
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "schedule"),
	}, nil
}

// NextRun returns the next scheduled run time.
func (s *Scheduler) NextRun() time.Time {
	return s.sched.Next(time.Now())
}

// ShouldRun returns true if a rebuild should run now
func (s *Scheduler) ShouldRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running {
		return false
	}

	lastRun := s.lastRun
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}

	return time.Now().After(s.sched.Next(lastRun))
}

// MarkRunning marks a rebuild as currently running
func (s *Scheduler) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// MarkComplete marks a rebuild as complete
func (s *Scheduler) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
}

// Start begins the scheduler loop and blocks until Stop is called.
func (s *Scheduler) Start(runFunc func() error) {
	s.logger.Info("scheduler started", "cron", s.expr, "next", s.NextRun())

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if !s.ShouldRun() {
				continue
			}
			s.MarkRunning()
			go func() {
				if err := runFunc(); err != nil {
					s.logger.Error("scheduled rebuild failed", "error", err)
				}
				s.MarkComplete()
			}()
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
