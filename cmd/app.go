package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/casetrack/cli/internal/casestatus"
	"github.com/casetrack/cli/internal/config"
	"github.com/casetrack/cli/internal/kv"
	"github.com/casetrack/cli/internal/metrics"
	"github.com/casetrack/cli/internal/notify"
	"github.com/casetrack/cli/internal/reminder"
	"github.com/casetrack/cli/internal/selftest"
	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/internal/uscis"
)

// app holds the services every command draws from. It is opened on first use
// and closed by Execute.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     kv.Store
	settings  *settings.Store
	reminders *reminder.Store
	client    *uscis.Client
	resolver  *casestatus.Resolver
	history   *casestatus.LastQuery
	metrics   *metrics.Metrics
	harness   *selftest.Harness
	notifier  notify.Notifier
}

var current *app

func getApp(cmd *cobra.Command) (*app, error) {
	if current != nil {
		return current, nil
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger := newLogger(cfg.Level())

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		settings:  settings.NewStore(store, settings.WithSecrets(settings.NewKeyring())),
		reminders: reminder.NewStore(store),
		history:   casestatus.NewLastQuery(store),
		metrics:   metrics.New(),
	}
	a.client = uscis.New(
		uscis.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		uscis.WithEndpoints(cfg.Endpoints()),
		uscis.WithLogger(logger.With("component", "uscis")),
	)
	a.resolver = casestatus.NewResolver(a.settings, a.client,
		casestatus.WithLogger(logger.With("component", "casestatus")))
	a.harness = selftest.New(a.client,
		selftest.NewLogStore(store, logger.With("component", "selftest")),
		selftest.WithProbeInterval(cfg.SelfTest.ProbeInterval),
		selftest.WithRateLimitBackoff(cfg.SelfTest.RateLimitBackoff),
		selftest.WithMetrics(a.metrics),
		selftest.WithLogger(logger.With("component", "selftest")),
	)
	a.notifier = newNotifier(cfg, logger)

	current = a
	return a, nil
}

func closeApp() {
	if current == nil {
		return
	}
	if err := current.store.Close(); err != nil {
		current.logger.Warn("failed to close the store", "error", err)
	}
	current = nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (kv.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var (
		store kv.Store
		err   error
	)
	switch cfg.Storage {
	case config.StorageBadger:
		store, err = kv.OpenBadger(kv.BadgerConfig{Path: cfg.StorePath(), Logger: logger.With("component", "badger")})
	default:
		store, err = kv.OpenFile(cfg.StorePath(), logger.With("component", "store"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage, err)
	}
	if err := kv.EnsureSchema(ctx, store); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newLogger(level slog.Level) *slog.Logger {
	l := pterm.DefaultLogger.WithWriter(os.Stderr).WithLevel(ptermLevel(level))
	return slog.New(pterm.NewSlogHandler(l))
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

func newNotifier(cfg config.Config, logger *slog.Logger) notify.Notifier {
	terminal := notify.Terminal{W: os.Stdout}
	if cfg.Notifier == config.NotifierTerminal {
		return terminal
	}
	return notify.Fallback{notify.NewDesktop(logger.With("component", "notify")), terminal}
}

func (a *app) dispatcher() *notify.Dispatcher {
	return &notify.Dispatcher{
		Settings:  a.settings,
		Reminders: a.reminders,
		Notifier:  a.notifier,
		Metrics:   a.metrics,
		Now:       time.Now,
		Logger:    a.logger.With("component", "dispatcher"),
	}
}

// configureClient pushes the stored credentials into the API client. The
// client keeps its cached token when they have not changed.
func (a *app) configureClient(ctx context.Context) error {
	s, err := a.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !s.HasCredentials() {
		return nil
	}
	want := uscis.Credentials{
		ClientID:     s.USCISClientID,
		ClientSecret: s.USCISClientSecret,
		Sandbox:      s.USCISSandboxMode,
	}
	if have, ok := a.client.Credentials(); ok && have == want {
		return nil
	}
	a.client.Configure(want)
	return nil
}

// dailyRunner runs the daily self-test with whatever credentials are stored
// at the moment it fires.
type dailyRunner struct{ app *app }

func (d dailyRunner) RunIfDue(ctx context.Context) (bool, error) {
	if err := d.app.configureClient(ctx); err != nil {
		return false, err
	}
	return d.app.harness.RunIfDue(ctx)
}
