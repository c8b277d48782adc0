package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/casetrack/cli/internal/metrics"
	"github.com/casetrack/cli/internal/reminder"
	"github.com/casetrack/cli/internal/settings"
)

// SettingsReader supplies the current settings.
type SettingsReader interface {
	Get(ctx context.Context) (settings.AppSettings, error)
}

// ReminderReader supplies the stored reminders.
type ReminderReader interface {
	GetAll(ctx context.Context) (reminder.Set, error)
}

// Result summarizes one dispatch pass.
type Result struct {
	Evaluated int
	Due       int
	Sent      int
	Failed    int
}

// Dispatcher evaluates reminders and pushes the due ones to a Notifier.
type Dispatcher struct {
	Settings  SettingsReader
	Reminders ReminderReader
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Now       func() time.Time
	Logger    *slog.Logger
}

// Dispatch notifies every due reminder. A failed notification is logged and
// counted; it never stops the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context) (Result, error) {
	return d.dispatch(ctx, nil)
}

// DispatchCategories is Dispatch restricted to categories.
func (d *Dispatcher) DispatchCategories(ctx context.Context, categories []reminder.Category) (Result, error) {
	if len(categories) == 0 {
		return Result{}, nil
	}
	return d.dispatch(ctx, categories)
}

func (d *Dispatcher) dispatch(ctx context.Context, only []reminder.Category) (Result, error) {
	s, err := d.Settings.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load settings: %w", err)
	}
	set, err := d.Reminders.GetAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load reminders: %w", err)
	}

	now := d.now()
	var res Result
	for _, e := range reminder.Evaluate(set, s, now) {
		if only != nil && !slices.Contains(only, e.Category) {
			continue
		}
		res.Evaluated++
		if !e.Due {
			continue
		}
		res.Due++
		if !e.Notifiable(s) {
			continue
		}
		title, message := Content(e)
		ok := d.Notifier.Notify(ctx, title, message)
		d.Metrics.Notification(string(e.Category), ok)
		if !ok {
			res.Failed++
			d.logger().Warn("reminder notification failed", "category", e.Category, "days_remaining", e.DaysRemaining)
			continue
		}
		res.Sent++
		d.logger().Info("reminder notification sent", "category", e.Category, "days_remaining", e.DaysRemaining)
	}
	if only == nil {
		d.Metrics.DueReminders(res.Due)
	}
	return res, nil
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Content builds the notification title and body for e. A reminder without a
// message gets one describing the date.
func Content(e reminder.Evaluation) (title, message string) {
	title = e.Reminder.Title
	if title == "" {
		title = e.Category.Label()
	}
	message = e.Reminder.Message
	if message == "" {
		message = fmt.Sprintf("%s on %s (%s)", e.Category.Label(), e.Reminder.Date.Format("Mon, Jan 2 2006"), When(e.DaysRemaining))
	}
	return title, message
}

// When phrases a day count relative to today.
func When(days int) string {
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	case days == -1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", -days)
	}
}
