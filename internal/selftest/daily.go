package selftest

import (
	"context"
)

// RunIfDue runs the daily test unless one already ran today. The "already
// ran" decision is re-derived from storage on every call, so a timer firing
// early, late or twice is harmless. An aborted run still counts as today's
// run.
func (h *Harness) RunIfDue(ctx context.Context) (ran bool, err error) {
	today := h.now().Format(DateLayout)
	last, ok, err := h.logs.LastTestDate(ctx)
	if err != nil {
		return false, err
	}
	if ok && last == today {
		h.logger.Debug("daily test already ran today", "date", today)
		h.metrics.DailyRun("skipped", h.now())
		return false, nil
	}

	h.logger.Info("running daily API test", "date", today)
	if _, err := h.RunDailyTest(ctx); err != nil {
		return true, err
	}
	return true, h.logs.SetLastTestDate(ctx, today)
}
