package notify

import (
	"context"
	"log/slog"

	"github.com/gen2brain/beeep"
)

// AppName is the application name shown with desktop notifications.
const AppName = "casetrack"

// SendFunc shows one native notification.
type SendFunc func(title, message string) error

func beeepSend(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Desktop raises native notifications: notify-send / D-Bus on Linux,
// osascript on macOS and toast notifications on Windows.
type Desktop struct {
	Send   SendFunc
	Logger *slog.Logger
}

// NewDesktop returns a Desktop notifier for the running platform.
func NewDesktop(logger *slog.Logger) *Desktop {
	beeep.AppName = AppName
	return &Desktop{Send: beeepSend, Logger: logger}
}

func (d *Desktop) Notify(ctx context.Context, title, message string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if err := d.Send(title, message); err != nil {
		d.Logger.Warn("desktop notification failed", "title", title, "error", err)
		return false
	}
	return true
}
