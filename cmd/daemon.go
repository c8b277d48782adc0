package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run reminders and the daily self-test in the background",
	Long: `Run in the foreground until interrupted. On start and then once per
configured interval the daemon notifies due reminders and runs the API
self-test if it has not run today. Reminder changes made by other casetrack
commands are picked up immediately.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	daemonCmd.Flags().Duration("interval", 0, "Override the configured check interval")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	d := &daemon.Daemon{
		Store:       a.store,
		Dispatcher:  a.dispatcher(),
		Daily:       dailyRunner{app: a},
		Interval:    a.cfg.Daemon.Interval,
		MetricsAddr: a.cfg.Daemon.MetricsAddr,
		Metrics:     a.metrics,
		Logger:      a.logger.With("component", "daemon"),
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		d.MetricsAddr = addr
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		d.Interval = interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printf("casetrack daemon running (every %s); press Ctrl+C to stop\n", d.Interval)
	return d.Run(ctx)
}
