package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/casestatus"
	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/pkg/util"
)

// SettingsService is the subset of the settings store the commands use.
type SettingsService interface {
	Get(ctx context.Context) (settings.AppSettings, error)
	UpdateOne(ctx context.Context, key, value string) (settings.AppSettings, error)
	Reset(ctx context.Context) error
}

// SettingsCmd handles settings operations.
type SettingsCmd struct {
	settings SettingsService
}

// ShowSettingsInput holds input for printing settings.
type ShowSettingsInput struct {
	Output string
}

// SetSettingInput holds input for changing one setting.
type SetSettingInput struct {
	Key   string
	Value string
}

const maskedSecret = "********"

// Show prints every setting. The client secret is masked.
func (c SettingsCmd) Show(ctx context.Context, in ShowSettingsInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	s, err := c.settings.Get(ctx)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		if s.USCISClientSecret != "" {
			s.USCISClientSecret = maskedSecret
		}
		return util.PrintPrettyJSON(s)
	}

	rows := pterm.TableData{{"Key", "Value"}}
	for _, e := range s.Entries() {
		rows = append(rows, []string{e.Key, util.OrDash(e.Value)})
	}
	PrintTableNoPad(rows, true)
	return nil
}

// Set changes a single setting by key.
func (c SettingsCmd) Set(ctx context.Context, in SetSettingInput) error {
	updated, err := c.settings.UpdateOne(ctx, in.Key, in.Value)
	if err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			pterm.Error.Printf("Valid keys: %s\n", strings.Join(settings.Keys(), ", "))
		}
		return err
	}

	for _, e := range updated.Entries() {
		if strings.EqualFold(e.Key, in.Key) {
			pterm.Success.Printf("%s = %s\n", e.Key, util.OrDash(e.Value))
			break
		}
	}
	if strings.EqualFold(in.Key, "mockCaseStatus") {
		if in.Value != "" && !lo.Contains(casestatus.KnownStatuses, in.Value) {
			pterm.Warning.Printf("%q is not a known USCIS status\n", in.Value)
		}
		if !updated.DebugMode {
			pterm.Info.Println("mockCaseStatus only applies while debugMode is true")
		}
	}
	return nil
}

// Reset restores the defaults.
func (c SettingsCmd) Reset(ctx context.Context) error {
	if err := c.settings.Reset(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Settings restored to defaults")
	return nil
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting by key. Keys:

  ` + strings.Join(settings.Keys(), "\n  ") + `

Pass an empty value to clear mockCaseStatus.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return settings.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		if len(args) == 1 && strings.EqualFold(args[0], "mockCaseStatus") {
			return casestatus.KnownStatuses, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)

	settingsShowCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func newSettingsCmd(cmd *cobra.Command) (SettingsCmd, error) {
	a, err := getApp(cmd)
	if err != nil {
		return SettingsCmd{}, err
	}
	return SettingsCmd{settings: a.settings}, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	c, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return c.Show(cmd.Context(), ShowSettingsInput{Output: output})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	c, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	return c.Set(cmd.Context(), SetSettingInput{Key: args[0], Value: args[1]})
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	c, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	return c.Reset(cmd.Context())
}
