// Package tui renders a live dashboard for one build batch.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/orchestrator"
)

// GameRow is one game's line in the dashboard.
type GameRow struct {
	ID        string
	State     domain.JobState
	StartedAt time.Time
	Duration  time.Duration
	Revision  string
	Errors    int
	Warnings  int
}

// Model is the TUI application model
type Model struct {
	rows []*GameRow
	byID map[string]*GameRow

	startedAt time.Time
	report    *domain.BatchReport
	runErr    error

	width  int
	height int

	cancel func()
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	// Order is the catalog order; rows render in this order.
	Order []string
	// Cancel stops the running batch when the user quits early.
	Cancel func()
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	rows := make([]*GameRow, 0, len(cfg.Order))
	byID := make(map[string]*GameRow, len(cfg.Order))
	for _, id := range cfg.Order {
		row := &GameRow{ID: id, State: domain.JobPending}
		rows = append(rows, row)
		byID[id] = row
	}

	return Model{
		rows:      rows,
		byID:      byID,
		startedAt: time.Now(),
		cancel:    cfg.Cancel,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg redraws running durations once a second
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// JobEventMsg carries one orchestrator event into the TUI.
type JobEventMsg orchestrator.Event

// DoneMsg carries the final report once the batch ends.
type DoneMsg struct {
	Report *domain.BatchReport
	Err    error
}
