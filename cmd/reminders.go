package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/notify"
	"github.com/casetrack/cli/internal/reminder"
	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/pkg/util"
)

// ReminderService is the subset of the reminder store the commands use.
type ReminderService interface {
	GetAll(ctx context.Context) (reminder.Set, error)
	Save(ctx context.Context, c reminder.Category, r reminder.Reminder) error
	Delete(ctx context.Context, c reminder.Category) error
	DeleteAll(ctx context.Context) error
}

// SettingsGetter supplies the current settings.
type SettingsGetter interface {
	Get(ctx context.Context) (settings.AppSettings, error)
}

// ReminderDispatcher pushes due reminders to the notifier.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context) (notify.Result, error)
}

// RemindersCmd handles reminder operations.
type RemindersCmd struct {
	reminders  ReminderService
	settings   SettingsGetter
	dispatcher ReminderDispatcher
	now        func() time.Time
	loc        *time.Location
}

// SetReminderInput holds input for saving a reminder.
type SetReminderInput struct {
	Category reminder.Category
	Date     string
	Title    string
	Message  string
}

// ListRemindersInput holds input for listing reminders.
type ListRemindersInput struct {
	Output string
	// Category limits the listing to one category when set.
	Category reminder.Category
}

// DeleteReminderInput holds input for deleting reminders.
type DeleteReminderInput struct {
	Category    reminder.Category
	All         bool
	SkipConfirm bool
}

// Set saves a reminder, replacing any existing one in the same category.
func (c RemindersCmd) Set(ctx context.Context, in SetReminderInput) error {
	if in.Date == "" {
		return fmt.Errorf("--date is required")
	}
	day, err := reminder.ParseDate(in.Date, c.loc)
	if err != nil {
		return err
	}

	set, err := c.reminders.GetAll(ctx)
	if err != nil {
		return err
	}
	_, replaced := set.Get(in.Category)

	r := reminder.Reminder{Date: day, Title: in.Title, Message: in.Message}
	if err := c.reminders.Save(ctx, in.Category, r); err != nil {
		return err
	}

	verb := "Saved"
	if replaced {
		verb = "Replaced"
	}
	days := reminder.DaysRemaining(day, c.now())
	pterm.Success.Printf("%s %s reminder for %s (%s)\n", verb, in.Category.Label(), util.FormatDay(day), notify.When(days))
	if days < 0 {
		pterm.Warning.Println("That date has already passed; no notification will be sent for it.")
	}
	return nil
}

// List prints every stored reminder ordered by date.
func (c RemindersCmd) List(ctx context.Context, in ListRemindersInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	evals, s, err := c.evaluate(ctx)
	if err != nil {
		return err
	}

	if in.Category != "" {
		evals = lo.Filter(evals, func(e reminder.Evaluation, _ int) bool { return e.Category == in.Category })
	}

	if in.Output == "json" {
		return util.PrintPrettyJSONSlice(evals)
	}

	if len(evals) == 0 {
		pterm.Info.Println("No reminders set")
		return nil
	}

	rows := pterm.TableData{{"Category", "Date", "Title", "Message", "When", "Due"}}
	for _, e := range evals {
		rows = append(rows, []string{
			e.Category.Label(),
			util.FormatDay(e.Reminder.Date),
			util.OrDash(e.Reminder.Title),
			util.OrDash(e.Reminder.Message),
			notify.When(e.DaysRemaining),
			util.YesNo(e.Due),
		})
	}
	PrintTableNoPad(rows, true)

	if !s.NotificationsEnabled {
		pterm.Info.Println("Notifications are disabled; enable them with 'casetrack settings set notificationsEnabled true'.")
	}
	return nil
}

// Due prints the reminders inside the notification window.
func (c RemindersCmd) Due(ctx context.Context) error {
	evals, s, err := c.evaluate(ctx)
	if err != nil {
		return err
	}
	due := lo.Filter(evals, func(e reminder.Evaluation, _ int) bool { return e.InApp(s) })
	if len(due) == 0 {
		pterm.Info.Println("Nothing coming up")
		return nil
	}
	for _, e := range due {
		title, message := notify.Content(e)
		pterm.Warning.Printf("%s: %s\n", title, message)
	}
	return nil
}

// Notify sends a notification for every due reminder now.
func (c RemindersCmd) Notify(ctx context.Context) error {
	res, err := c.dispatcher.Dispatch(ctx)
	if err != nil {
		return err
	}
	switch {
	case res.Due == 0:
		pterm.Info.Println("No reminders are due")
	case res.Failed > 0:
		pterm.Warning.Printf("Sent %d of %d notifications; %d failed\n", res.Sent, res.Due, res.Failed)
	default:
		pterm.Success.Printf("Sent %d notifications\n", res.Sent)
	}
	return nil
}

// Delete removes one reminder or, with All, every reminder.
func (c RemindersCmd) Delete(ctx context.Context, in DeleteReminderInput) error {
	if !in.All {
		if err := c.reminders.Delete(ctx, in.Category); err != nil {
			return err
		}
		pterm.Success.Printf("Deleted %s reminder\n", in.Category.Label())
		return nil
	}

	if !in.SkipConfirm {
		pterm.DefaultInteractiveConfirm.DefaultText = "Delete every reminder?"
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Deletion cancelled")
			return nil
		}
	}
	if err := c.reminders.DeleteAll(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Deleted all reminders")
	return nil
}

func (c RemindersCmd) evaluate(ctx context.Context) ([]reminder.Evaluation, settings.AppSettings, error) {
	s, err := c.settings.Get(ctx)
	if err != nil {
		return nil, s, err
	}
	set, err := c.reminders.GetAll(ctx)
	if err != nil {
		return nil, s, err
	}
	return reminder.Evaluate(set, s, c.now()), s, nil
}

var remindersCmd = &cobra.Command{
	Use:     "reminders",
	Aliases: []string{"reminder"},
	Short:   "Manage biometrics, interview and RFE reminders",
}

var remindersSetCmd = &cobra.Command{
	Use:       "set <biometrics|interview|rfe>",
	Short:     "Save a reminder, replacing any existing one in the category",
	Args:      cobra.ExactArgs(1),
	ValidArgs: categoryNames(),
	RunE:      runRemindersSet,
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	Args:  cobra.NoArgs,
	RunE:  runRemindersList,
}

var remindersDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show reminders inside the notification window",
	Args:  cobra.NoArgs,
	RunE:  runRemindersDue,
}

var remindersNotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send notifications for due reminders now",
	Args:  cobra.NoArgs,
	RunE:  runRemindersNotify,
}

var remindersDeleteCmd = &cobra.Command{
	Use:       "delete [biometrics|interview|rfe]",
	Short:     "Delete a reminder, or every reminder with --all",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: categoryNames(),
	RunE:      runRemindersDelete,
}

func init() {
	remindersCmd.AddCommand(remindersSetCmd)
	remindersCmd.AddCommand(remindersListCmd)
	remindersCmd.AddCommand(remindersDueCmd)
	remindersCmd.AddCommand(remindersNotifyCmd)
	remindersCmd.AddCommand(remindersDeleteCmd)

	remindersSetCmd.Flags().String("date", "", "Appointment date as YYYY-MM-DD (required)")
	remindersSetCmd.Flags().String("title", "", "Reminder title")
	remindersSetCmd.Flags().String("message", "", "Notification message")
	_ = remindersSetCmd.MarkFlagRequired("date")

	remindersListCmd.Flags().StringP("output", "o", "", "Output format (json)")
	remindersListCmd.Flags().VarP(new(reminder.Category), "category", "c", "Only list one category (biometrics, interview, rfe)")
	_ = remindersListCmd.RegisterFlagCompletionFunc("category", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return categoryNames(), cobra.ShellCompDirectiveNoFileComp
	})

	remindersDeleteCmd.Flags().Bool("all", false, "Delete every reminder")
	remindersDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
}

func categoryNames() []string {
	return lo.Map(reminder.Categories, func(c reminder.Category, _ int) string { return string(c) })
}

func newRemindersCmd(cmd *cobra.Command) (RemindersCmd, error) {
	a, err := getApp(cmd)
	if err != nil {
		return RemindersCmd{}, err
	}
	return RemindersCmd{
		reminders:  a.reminders,
		settings:   a.settings,
		dispatcher: a.dispatcher(),
		now:        time.Now,
		loc:        time.Local,
	}, nil
}

func runRemindersSet(cmd *cobra.Command, args []string) error {
	category, err := reminder.ParseCategory(args[0])
	if err != nil {
		return err
	}
	c, err := newRemindersCmd(cmd)
	if err != nil {
		return err
	}
	date, _ := cmd.Flags().GetString("date")
	title, _ := cmd.Flags().GetString("title")
	message, _ := cmd.Flags().GetString("message")
	return c.Set(cmd.Context(), SetReminderInput{
		Category: category,
		Date:     date,
		Title:    title,
		Message:  message,
	})
}

func runRemindersList(cmd *cobra.Command, args []string) error {
	c, err := newRemindersCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	in := ListRemindersInput{Output: output}
	if f := cmd.Flags().Lookup("category"); f != nil {
		in.Category = *f.Value.(*reminder.Category)
	}
	return c.List(cmd.Context(), in)
}

func runRemindersDue(cmd *cobra.Command, args []string) error {
	c, err := newRemindersCmd(cmd)
	if err != nil {
		return err
	}
	return c.Due(cmd.Context())
}

func runRemindersNotify(cmd *cobra.Command, args []string) error {
	c, err := newRemindersCmd(cmd)
	if err != nil {
		return err
	}
	return c.Notify(cmd.Context())
}

func runRemindersDelete(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	skip, _ := cmd.Flags().GetBool("yes")

	in := DeleteReminderInput{All: all, SkipConfirm: skip}
	switch {
	case all && len(args) > 0:
		return fmt.Errorf("pass either a category or --all, not both")
	case !all && len(args) == 0:
		return fmt.Errorf("a category or --all is required")
	case !all:
		category, err := reminder.ParseCategory(args[0])
		if err != nil {
			return err
		}
		in.Category = category
	}

	c, err := newRemindersCmd(cmd)
	if err != nil {
		return err
	}
	return c.Delete(cmd.Context(), in)
}
