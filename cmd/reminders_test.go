package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrack/cli/internal/notify"
	"github.com/casetrack/cli/internal/reminder"
	"github.com/casetrack/cli/internal/settings"
)

var cmdTestLoc = time.FixedZone("EST", -5*3600)

// cmdTestNow is 2026-03-10 09:00 EST.
var cmdTestNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, cmdTestLoc)

type FakeReminderService struct {
	Set reminder.Set

	GetAllFunc func(ctx context.Context) (reminder.Set, error)
}

func (f *FakeReminderService) GetAll(ctx context.Context) (reminder.Set, error) {
	if f.GetAllFunc != nil {
		return f.GetAllFunc(ctx)
	}
	return f.Set, nil
}

func (f *FakeReminderService) Save(_ context.Context, c reminder.Category, r reminder.Reminder) error {
	f.Set.Put(c, r)
	return nil
}

func (f *FakeReminderService) Delete(_ context.Context, c reminder.Category) error {
	f.Set.Clear(c)
	return nil
}

func (f *FakeReminderService) DeleteAll(context.Context) error {
	f.Set = reminder.Set{}
	return nil
}

type FakeSettingsGetter struct {
	Settings settings.AppSettings
}

func (f *FakeSettingsGetter) Get(context.Context) (settings.AppSettings, error) {
	return f.Settings, nil
}

type FakeReminderDispatcher struct {
	DispatchFunc func(ctx context.Context) (notify.Result, error)
}

func (f *FakeReminderDispatcher) Dispatch(ctx context.Context) (notify.Result, error) {
	if f.DispatchFunc != nil {
		return f.DispatchFunc(ctx)
	}
	return notify.Result{}, nil
}

func newTestRemindersCmd(svc *FakeReminderService, s settings.AppSettings) RemindersCmd {
	return RemindersCmd{
		reminders:  svc,
		settings:   &FakeSettingsGetter{Settings: s},
		dispatcher: &FakeReminderDispatcher{},
		now:        func() time.Time { return cmdTestNow },
		loc:        cmdTestLoc,
	}
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := reminder.ParseDate(s, cmdTestLoc)
	require.NoError(t, err)
	return d
}

func TestRemindersSet_SavesNormalizedDate(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	c := newTestRemindersCmd(svc, settings.Defaults())

	err := c.Set(context.Background(), SetReminderInput{
		Category: reminder.Biometrics,
		Date:     "2026-03-12",
		Title:    "Biometrics at ASC",
		Message:  "Bring the appointment notice",
	})
	require.NoError(t, err)

	r, ok := svc.Set.Get(reminder.Biometrics)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.March, 12, 12, 0, 0, 0, cmdTestLoc), r.Date)
	assert.Equal(t, "Biometrics at ASC", r.Title)
	assert.Contains(t, outBuf.String(), "Saved Biometrics Appointment reminder")
	assert.Contains(t, outBuf.String(), "in 2 days")
}

func TestRemindersSet_ReplacesAndWarnsForPastDates(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Interview, reminder.Reminder{Date: mustDay(t, "2026-04-01"), Title: "old"})
	c := newTestRemindersCmd(svc, settings.Defaults())

	require.NoError(t, c.Set(context.Background(), SetReminderInput{Category: reminder.Interview, Date: "2026-03-01", Title: "new"}))

	r, _ := svc.Set.Get(reminder.Interview)
	assert.Equal(t, "new", r.Title)
	out := outBuf.String()
	assert.Contains(t, out, "Replaced")
	assert.Contains(t, out, "already passed")
}

func TestRemindersSet_RejectsBadDate(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	c := newTestRemindersCmd(svc, settings.Defaults())

	assert.Error(t, c.Set(context.Background(), SetReminderInput{Category: reminder.RFE, Date: "03/12/2026"}))
	assert.Error(t, c.Set(context.Background(), SetReminderInput{Category: reminder.RFE}))
	assert.Equal(t, 0, svc.Set.Len())
}

func TestRemindersList_Table(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.RFE, reminder.Reminder{Date: mustDay(t, "2026-04-20"), Title: "RFE response due"})
	svc.Set.Put(reminder.Biometrics, reminder.Reminder{Date: mustDay(t, "2026-03-11")})
	c := newTestRemindersCmd(svc, settings.Defaults())

	require.NoError(t, c.List(context.Background(), ListRemindersInput{}))
	out := outBuf.String()
	assert.Contains(t, out, "Biometrics Appointment")
	assert.Contains(t, out, "tomorrow")
	assert.Contains(t, out, "RFE response due")
	assert.Less(t, strings.Index(out, "Biometrics Appointment"), strings.Index(out, "RFE response due"), "sorted by date")
}

func TestRemindersList_CategoryFilter(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.RFE, reminder.Reminder{Date: mustDay(t, "2026-04-20"), Title: "RFE response due"})
	svc.Set.Put(reminder.Interview, reminder.Reminder{Date: mustDay(t, "2026-03-20"), Title: "Field office interview"})
	c := newTestRemindersCmd(svc, settings.Defaults())

	require.NoError(t, c.List(context.Background(), ListRemindersInput{Category: reminder.Interview}))
	out := outBuf.String()
	assert.Contains(t, out, "Field office interview")
	assert.NotContains(t, out, "RFE response due")
}

func TestRemindersListCategoryFlag(t *testing.T) {
	f := remindersListCmd.Flags().Lookup("category")
	require.NotNil(t, f)
	assert.Equal(t, "category", f.Value.Type())

	require.NoError(t, f.Value.Set("RFE"))
	t.Cleanup(func() { *f.Value.(*reminder.Category) = "" })
	assert.Equal(t, reminder.RFE, *f.Value.(*reminder.Category))
	assert.Error(t, f.Value.Set("passport"))
}

func TestRemindersList_EmptyAndDisabled(t *testing.T) {
	setupStdoutCapture(t)

	c := newTestRemindersCmd(&FakeReminderService{}, settings.Defaults())
	require.NoError(t, c.List(context.Background(), ListRemindersInput{}))
	assert.Contains(t, outBuf.String(), "No reminders set")

	outBuf.Reset()
	s := settings.Defaults()
	s.NotificationsEnabled = false
	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Interview, reminder.Reminder{Date: mustDay(t, "2026-03-10")})
	c = newTestRemindersCmd(svc, s)
	require.NoError(t, c.List(context.Background(), ListRemindersInput{}))
	assert.Contains(t, outBuf.String(), "Notifications are disabled")
}

func TestRemindersList_JSONOutput(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Interview, reminder.Reminder{Date: mustDay(t, "2026-03-13"), Title: "Interview"})
	c := newTestRemindersCmd(svc, settings.Defaults())

	out, err := captureJSON(t, func() error {
		return c.List(context.Background(), ListRemindersInput{Output: "json"})
	})
	require.NoError(t, err)

	var got []reminder.Evaluation
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, reminder.Interview, got[0].Category)
	assert.Equal(t, 3, got[0].DaysRemaining)
	assert.True(t, got[0].Due)
}

func TestRemindersList_JSONEmptyIsArray(t *testing.T) {
	setupStdoutCapture(t)

	c := newTestRemindersCmd(&FakeReminderService{}, settings.Defaults())
	out, err := captureJSON(t, func() error {
		return c.List(context.Background(), ListRemindersInput{Output: "json"})
	})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestRemindersDue_OnlyInsideWindow(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Biometrics, reminder.Reminder{Date: mustDay(t, "2026-03-10"), Title: "Fingerprints"})
	svc.Set.Put(reminder.Interview, reminder.Reminder{Date: mustDay(t, "2026-03-20"), Title: "Interview"})
	svc.Set.Put(reminder.RFE, reminder.Reminder{Date: mustDay(t, "2026-03-09"), Title: "Late RFE"})
	c := newTestRemindersCmd(svc, settings.Defaults())

	require.NoError(t, c.Due(context.Background()))
	out := outBuf.String()
	assert.Contains(t, out, "Fingerprints")
	assert.Contains(t, out, "today")
	assert.NotContains(t, out, "Interview")
	assert.NotContains(t, out, "Late RFE")
}

func TestRemindersDue_InAppDisabled(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Biometrics, reminder.Reminder{Date: mustDay(t, "2026-03-10"), Title: "Fingerprints"})
	s := settings.Defaults()
	s.ShowInAppReminders = false
	c := newTestRemindersCmd(svc, s)

	require.NoError(t, c.Due(context.Background()))
	assert.Contains(t, outBuf.String(), "Nothing coming up")
}

func TestRemindersNotify_Summaries(t *testing.T) {
	tests := []struct {
		name   string
		result notify.Result
		err    error
		want   string
	}{
		{"nothing due", notify.Result{Evaluated: 2}, nil, "No reminders are due"},
		{"all sent", notify.Result{Due: 2, Sent: 2}, nil, "Sent 2 notifications"},
		{"partial", notify.Result{Due: 2, Sent: 1, Failed: 1}, nil, "Sent 1 of 2 notifications; 1 failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupStdoutCapture(t)
			c := newTestRemindersCmd(&FakeReminderService{}, settings.Defaults())
			c.dispatcher = &FakeReminderDispatcher{DispatchFunc: func(context.Context) (notify.Result, error) {
				return tt.result, tt.err
			}}
			require.NoError(t, c.Notify(context.Background()))
			assert.Contains(t, outBuf.String(), tt.want)
		})
	}
}

func TestRemindersNotify_PropagatesReadErrors(t *testing.T) {
	setupStdoutCapture(t)
	c := newTestRemindersCmd(&FakeReminderService{}, settings.Defaults())
	c.dispatcher = &FakeReminderDispatcher{DispatchFunc: func(context.Context) (notify.Result, error) {
		return notify.Result{}, errors.New("load settings: boom")
	}}
	assert.Error(t, c.Notify(context.Background()))
}

func TestRemindersDelete(t *testing.T) {
	setupStdoutCapture(t)

	svc := &FakeReminderService{}
	svc.Set.Put(reminder.Biometrics, reminder.Reminder{Date: mustDay(t, "2026-03-12")})
	svc.Set.Put(reminder.RFE, reminder.Reminder{Date: mustDay(t, "2026-03-14")})
	c := newTestRemindersCmd(svc, settings.Defaults())

	require.NoError(t, c.Delete(context.Background(), DeleteReminderInput{Category: reminder.Biometrics}))
	_, ok := svc.Set.Get(reminder.Biometrics)
	assert.False(t, ok)
	assert.Equal(t, 1, svc.Set.Len())

	require.NoError(t, c.Delete(context.Background(), DeleteReminderInput{All: true, SkipConfirm: true}))
	assert.Equal(t, 0, svc.Set.Len())
	assert.Contains(t, outBuf.String(), "Deleted all reminders")
}
