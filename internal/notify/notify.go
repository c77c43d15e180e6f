// Package notify delivers batch-completion notifications.
package notify

import (
	"fmt"

	"github.com/openarcade/gameshelf/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	BatchID string // Optional batch reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// FromReport builds the completion notification for a finished batch.
func FromReport(r *domain.BatchReport) Notification {
	n := Notification{
		Message: r.Summary(),
		BatchID: r.ID,
	}
	switch {
	case r.Failed > 0:
		n.Title = fmt.Sprintf("gameshelf: %d of %d games failed", r.Failed, r.Total)
		n.Type = NotifyError
	case r.Skipped > 0:
		n.Title = "gameshelf: build finished with skips"
		n.Type = NotifyWarning
	default:
		n.Title = "gameshelf: build succeeded"
		n.Type = NotifySuccess
	}
	return n
}

// FromConfig assembles the configured notifier set. With nothing enabled it
// returns a NoopNotifier so callers never branch.
func FromConfig(desktop bool, slackWebhook string) Notifier {
	var notifiers []Notifier
	if desktop {
		notifiers = append(notifiers, NewDesktopNotifier(true))
	}
	if slackWebhook != "" {
		notifiers = append(notifiers, NewSlackNotifier(slackWebhook))
	}
	if len(notifiers) == 0 {
		return NoopNotifier{}
	}
	return NewMultiNotifier(notifiers...)
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
