// Package daemon is the long-running background process: it dispatches due
// reminders, runs the daily self-test once a day and reacts to changes other
// processes make to the store.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/casetrack/cli/internal/kv"
	"github.com/casetrack/cli/internal/metrics"
	"github.com/casetrack/cli/internal/notify"
	"github.com/casetrack/cli/internal/reminder"
	"github.com/casetrack/cli/internal/settings"
)

// Dispatcher sends due reminder notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context) (notify.Result, error)
	DispatchCategories(ctx context.Context, categories []reminder.Category) (notify.Result, error)
}

// DailyRunner runs the daily self-test when it has not run today.
type DailyRunner interface {
	RunIfDue(ctx context.Context) (bool, error)
}

// Watcher is the change feed of the store.
type Watcher interface {
	Watch(fn func(kv.Change)) (stop func())
}

const changeBuffer = 32

// Daemon ties the periodic and change-driven work together.
type Daemon struct {
	Store       Watcher
	Dispatcher  Dispatcher
	Daily       DailyRunner
	Interval    time.Duration
	MetricsAddr string
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// Tick replaces the interval ticker when set.
	Tick <-chan time.Time
}

// Run blocks until ctx is cancelled or the metrics server fails.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Tick == nil && d.Interval <= 0 {
		return fmt.Errorf("daemon interval must be positive, got %s", d.Interval)
	}

	changes := make(chan kv.Change, changeBuffer)
	stop := d.Store.Watch(func(c kv.Change) {
		select {
		case changes <- c:
		default:
			d.Logger.Warn("change feed backlog full, dropping event", "key", c.Key)
		}
	})
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop(ctx, changes) })
	if d.MetricsAddr != "" && d.Metrics != nil {
		srv := &http.Server{
			Addr:              d.MetricsAddr,
			Handler:           d.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			d.Logger.Info("serving metrics", "addr", d.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func (d *Daemon) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics.Handler())
	return mux
}

func (d *Daemon) loop(ctx context.Context, changes <-chan kv.Change) error {
	tick := d.Tick
	if tick == nil {
		t := time.NewTicker(d.Interval)
		defer t.Stop()
		tick = t.C
	}

	d.Logger.Info("daemon started", "interval", d.Interval)
	d.runPeriodic(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Logger.Info("daemon stopping")
			return nil
		case <-tick:
			d.runPeriodic(ctx)
		case c := <-changes:
			d.handleChange(ctx, c)
		}
	}
}

// runPeriodic is the activation and timer callback. Failures are logged so
// the next tick gets another chance.
func (d *Daemon) runPeriodic(ctx context.Context) {
	res, err := d.Dispatcher.Dispatch(ctx)
	if err != nil {
		d.Logger.Error("reminder dispatch failed", "error", err)
	} else {
		d.Logger.Debug("reminders dispatched", "due", res.Due, "sent", res.Sent, "failed", res.Failed)
	}

	ran, err := d.Daily.RunIfDue(ctx)
	if err != nil {
		d.Logger.Error("daily self-test failed", "error", err)
		return
	}
	if ran {
		d.Logger.Info("daily self-test finished")
	}
}

func (d *Daemon) handleChange(ctx context.Context, c kv.Change) {
	switch c.Key {
	case reminder.StorageKey:
		before, _ := reminder.DecodeSet(c.Old)
		after, err := reminder.DecodeSet(c.New)
		if err != nil {
			d.Logger.Warn("ignoring unreadable reminder change", "error", err)
			return
		}
		changed := reminder.Changed(before, after)
		if len(changed) == 0 {
			return
		}
		d.Logger.Info("reminders changed", "categories", changed)
		if _, err := d.Dispatcher.DispatchCategories(ctx, changed); err != nil {
			d.Logger.Error("reminder dispatch failed", "error", err)
		}
	case settings.StorageKey:
		d.Logger.Info("settings changed")
	}
}
