package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/openarcade/gameshelf/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	revisionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	errorBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	done, failed := m.progress()
	header := fmt.Sprintf(" gameshelf build │ %d/%d done │ %d failed │ started %s ",
		done, len(m.rows), failed, humanize.Time(m.startedAt))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRows()))
	b.WriteString("\n")

	switch {
	case m.runErr != nil:
		b.WriteString(errorBarStyle.Width(m.width).Render(" batch failed: " + m.runErr.Error() + " "))
	case m.report != nil:
		b.WriteString(statusBarStyle.Width(m.width).Render(" " + m.report.Summary() + " "))
	default:
		b.WriteString(statusBarStyle.Width(m.width).Render(" q: cancel and quit "))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) progress() (done, failed int) {
	for _, row := range m.rows {
		if row.State.Terminal() {
			done++
		}
		if row.State == domain.JobFailed {
			failed++
		}
	}
	return done, failed
}

func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return pendingStyle.Render("no games in catalog")
	}

	var b strings.Builder
	for i, row := range m.rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderRow(row))
	}
	return b.String()
}

func (m Model) renderRow(row *GameRow) string {
	name := fmt.Sprintf("%-24s", row.ID)

	switch row.State {
	case domain.JobRunning:
		elapsed := time.Since(row.StartedAt).Round(time.Second)
		return runningStyle.Render(fmt.Sprintf("▶ %s running  %s", name, elapsed))

	case domain.JobSuccess:
		line := successStyle.Render(fmt.Sprintf("✓ %s success  %s", name, row.Duration.Round(time.Millisecond)))
		if row.Revision != "" {
			line += revisionStyle.Render("  " + shortRevision(row.Revision))
		}
		if row.Warnings > 0 {
			line += runningStyle.Render(fmt.Sprintf("  %d warning(s)", row.Warnings))
		}
		return line

	case domain.JobFailed:
		return failedStyle.Render(fmt.Sprintf("✗ %s failed   %d error(s)", name, row.Errors))

	case domain.JobSkipped:
		return skippedStyle.Render(fmt.Sprintf("- %s skipped", name))

	default:
		return pendingStyle.Render(fmt.Sprintf("· %s pending", name))
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
