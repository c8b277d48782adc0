package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// metadata is stamped at build time through Execute.
var metadata = struct {
	Version string
	Commit  string
}{Version: "dev"}

var rootCmd = &cobra.Command{
	Use:   "casetrack",
	Short: "Track a USCIS case and the appointments around it",
	Long: `casetrack looks up a USCIS case by receipt number, keeps reminders for
biometrics, interview and RFE dates, and raises desktop notifications when
one of them is coming up.

Run "casetrack daemon" to keep reminders and the daily API self-test going
in the background.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default ~/.casetrack/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(remindersCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version, commit string) {
	if version != "" {
		metadata.Version = version
	}
	metadata.Commit = commit

	err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(metadata.Version),
		fang.WithCommit(metadata.Commit),
	)
	closeApp()
	if err != nil {
		os.Exit(1)
	}
}
