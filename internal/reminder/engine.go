package reminder

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/casetrack/cli/internal/settings"
)

// DaysRemaining counts calendar days from now's local day to target's day in
// the same location. It is negative for past days and 0 on the day itself.
func DaysRemaining(target, now time.Time) int {
	ty, tm, td := target.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(n) / (24 * time.Hour))
}

// IsDue reports whether a reminder daysRemaining days out falls inside the
// inclusive lead window. Past days are never due.
func IsDue(daysRemaining int, s settings.AppSettings) bool {
	return s.NotificationsEnabled && daysRemaining >= 0 && daysRemaining <= s.ReminderDaysBefore
}

// Evaluation is the verdict for one stored reminder.
type Evaluation struct {
	Category      Category `json:"category"`
	Reminder      Reminder `json:"reminder"`
	DaysRemaining int      `json:"daysRemaining"`
	Due           bool     `json:"due"`
}

// InApp reports whether the reminder should be highlighted in listings.
func (e Evaluation) InApp(s settings.AppSettings) bool {
	return e.Due && s.ShowInAppReminders
}

// Notifiable reports whether the reminder should be pushed to the notifier.
func (e Evaluation) Notifiable(s settings.AppSettings) bool {
	return e.Due && s.ShowBrowserNotifications
}

// Evaluate computes a verdict for every reminder in set, ordered by date.
func Evaluate(set Set, s settings.AppSettings, now time.Time) []Evaluation {
	evals := lo.Map(set.Entries(), func(e Entry, _ int) Evaluation {
		days := DaysRemaining(e.Reminder.Date, now)
		return Evaluation{
			Category:      e.Category,
			Reminder:      e.Reminder,
			DaysRemaining: days,
			Due:           IsDue(days, s),
		}
	})
	slices.SortStableFunc(evals, func(a, b Evaluation) int {
		return a.Reminder.Date.Compare(b.Reminder.Date)
	})
	return evals
}

// Future returns the reminders dated today or later, earliest first,
// regardless of whether they are due.
func Future(set Set, s settings.AppSettings, now time.Time) []Evaluation {
	return lo.Filter(Evaluate(set, s, now), func(e Evaluation, _ int) bool {
		return e.DaysRemaining >= 0
	})
}

// Due returns the due reminders, earliest first.
func Due(set Set, s settings.AppSettings, now time.Time) []Evaluation {
	return lo.Filter(Evaluate(set, s, now), func(e Evaluation, _ int) bool {
		return e.Due
	})
}
