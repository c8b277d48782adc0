// Package notify delivers due reminders to a notification surface.
package notify

import (
	"context"
	"io"

	"github.com/charmbracelet/lipgloss/v2"
)

// Notifier shows one notification and reports whether it was delivered.
type Notifier interface {
	Notify(ctx context.Context, title, message string) bool
}

// Fallback tries each notifier in order and stops at the first success.
type Fallback []Notifier

func (f Fallback) Notify(ctx context.Context, title, message string) bool {
	for _, n := range f {
		if n.Notify(ctx, title, message) {
			return true
		}
	}
	return false
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Terminal renders notifications as a bordered box on W.
type Terminal struct {
	W io.Writer
}

func (t Terminal) Notify(_ context.Context, title, message string) bool {
	body := titleStyle.Render(title)
	if message != "" {
		body += "\n" + message
	}
	_, err := io.WriteString(t.W, boxStyle.Render(body)+"\n")
	return err == nil
}
