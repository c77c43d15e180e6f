package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/orchestrator"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case JobEventMsg:
		m.applyEvent(orchestrator.Event(msg))
		return m, nil

	case DoneMsg:
		m.report = msg.Report
		m.runErr = msg.Err
		return m, tea.Quit

	case TickMsg:
		if m.report == nil {
			return m, tickCmd()
		}
		return m, nil
	}

	return m, nil
}

// applyEvent folds an orchestrator event into the row it belongs to. Rows are
// shared pointers, so the usual value-copy Update still sees the mutation.
func (m Model) applyEvent(e orchestrator.Event) {
	row, ok := m.byID[e.GameID]
	if !ok {
		return
	}

	row.State = e.State
	switch e.State {
	case domain.JobRunning:
		row.StartedAt = time.Now()
	default:
		if e.Outcome != nil {
			row.Duration = e.Outcome.Duration
			row.Revision = e.Outcome.Revision
			row.Errors = len(e.Outcome.Errors)
			row.Warnings = len(e.Outcome.Warnings)
		}
	}
}

