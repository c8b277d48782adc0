// Package selftest runs the daily USCIS API self-test and tracks whether the
// accumulated results meet the production access requirements.
package selftest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/casetrack/cli/internal/metrics"
	"github.com/casetrack/cli/internal/uscis"
)

// API is what the harness needs from the USCIS client.
type API interface {
	uscis.ProbeHooks
	TestConnection(ctx context.Context) uscis.ConnectionResult
	FetchCaseStatus(ctx context.Context, receipt string) (uscis.CaseStatus, error)
}

const (
	DefaultProbeInterval    = time.Second
	DefaultRateLimitBackoff = 2 * time.Second
)

// Option configures a Harness.
type Option func(*Harness)

// WithProbeInterval sets the minimum spacing between upstream calls. Zero
// disables pacing.
func WithProbeInterval(d time.Duration) Option {
	return func(h *Harness) {
		if d <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		h.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRateLimitBackoff sets the extra pause after a 429.
func WithRateLimitBackoff(d time.Duration) Option {
	return func(h *Harness) { h.backoff = d }
}

// WithProbes replaces the probe battery.
func WithProbes(p []Probe) Option {
	return func(h *Harness) { h.probes = p }
}

// WithMetrics records probe and run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Harness runs probe batteries against the API and records the results.
type Harness struct {
	api     API
	logs    *LogStore
	limiter *rate.Limiter
	backoff time.Duration
	probes  []Probe
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a harness driving api and persisting to logs.
func New(api API, logs *LogStore, opts ...Option) *Harness {
	h := &Harness{
		api:     api,
		logs:    logs,
		limiter: rate.NewLimiter(rate.Every(DefaultProbeInterval), 1),
		backoff: DefaultRateLimitBackoff,
		probes:  DefaultProbes,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Outcome describes one RunDailyTest call.
type Outcome struct {
	Connection uscis.ConnectionResult `json:"connection"`
	// Log is nil when the run was aborted.
	Log *TestLog `json:"log,omitempty"`
}

// Recorded reports whether a test log was persisted.
func (o Outcome) Recorded() bool { return o.Log != nil }

// TestConnection checks that a token exchange succeeds.
func (h *Harness) TestConnection(ctx context.Context) uscis.ConnectionResult {
	return h.api.TestConnection(ctx)
}

// RunDailyTest checks the connection, runs the probe battery and appends a
// TestLog dated today. A failed connection check aborts the run without
// persisting anything. Repeated runs on one day each append an entry.
func (h *Harness) RunDailyTest(ctx context.Context) (Outcome, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return Outcome{}, err
	}
	conn := h.api.TestConnection(ctx)
	if !conn.Success {
		h.logger.Error("API connection test failed, aborting daily test", "message", conn.Message)
		h.metrics.DailyRun("aborted", h.now())
		return Outcome{Connection: conn}, nil
	}

	results, err := h.RunProbes(ctx)
	if err != nil {
		h.metrics.DailyRun("failed", h.now())
		return Outcome{Connection: conn}, err
	}

	now := h.now()
	log := TestLog{
		Date:           now.Format(DateLayout),
		ConnectionTest: true,
		QueryResults:   results,
		Timestamp:      now.UTC().Format(TimestampLayout),
		RunID:          uuid.NewString(),
	}
	if err := h.logs.Append(ctx, log); err != nil {
		h.metrics.DailyRun("failed", now)
		return Outcome{Connection: conn}, fmt.Errorf("save daily test: %w", err)
	}
	h.metrics.DailyRun("recorded", now)
	h.logger.Info("daily test recorded",
		"date", log.Date, "run_id", log.RunID,
		"success", results.Success, "error", results.Error)
	return Outcome{Connection: conn, Log: &log}, nil
}

// RunProbes runs the battery once and tallies the results. The cached token
// is restored and any unconsumed fault disarmed afterwards whatever happens. Individual probe failures are the
// point of the exercise and never abort the battery; only context
// cancellation does.
func (h *Harness) RunProbes(ctx context.Context) (QueryResults, error) {
	snapshot, hadToken := h.api.SnapshotToken()
	defer func() {
		h.api.ClearFault()
		h.api.RestoreToken(snapshot, hadToken)
	}()

	results := QueryResults{Total: len(h.probes)}
	for _, p := range h.probes {
		if err := h.limiter.Wait(ctx); err != nil {
			return results, err
		}
		if p.Prepare != nil {
			p.Prepare(h.api)
		}

		_, err := h.api.FetchCaseStatus(ctx, p.Receipt)
		code := http.StatusOK
		if err != nil {
			code = uscis.StatusCode(err)
		}
		h.metrics.Probe(code)

		if err == nil {
			results.Success++
			results.ResponseCodes.Add(code)
			h.logger.Debug("probe succeeded", "probe", p.Name, "receipt", p.Receipt)
			continue
		}
		results.Error++
		results.ResponseCodes.Add(code)
		if code != p.Expect {
			h.logger.Warn("probe returned an unexpected status",
				"probe", p.Name, "receipt", p.Receipt, "want", p.Expect, "got", codeLabel(code), "error", err)
		} else {
			h.logger.Debug("probe failed as expected", "probe", p.Name, "status", code)
		}
		if code == http.StatusTooManyRequests && h.backoff > 0 {
			h.logger.Warn("rate limited, backing off", "backoff", h.backoff)
			if err := sleep(ctx, h.backoff); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Readiness is the verdict on the production access requirements.
type Readiness struct {
	HasFiveDays         bool    `json:"hasFiveDays"`
	HasSuccessAndErrors bool    `json:"hasSuccessAndErrors"`
	TotalDays           int     `json:"totalDays"`
	LastTestDate        *string `json:"lastTestDate"`
}

// RequiredDays is the number of distinct test days production access needs.
const RequiredDays = 5

// Evaluate computes the readiness verdict over logs.
func Evaluate(logs []TestLog) Readiness {
	days := lo.Uniq(lo.Map(logs, func(l TestLog, _ int) string { return l.Date }))
	r := Readiness{
		TotalDays: len(days),
		HasSuccessAndErrors: lo.SomeBy(logs, func(l TestLog) bool {
			return l.QueryResults.Success > 0 && l.QueryResults.Error > 0
		}),
	}
	r.HasFiveDays = r.TotalDays >= RequiredDays
	if len(logs) > 0 {
		last := logs[len(logs)-1].Date
		r.LastTestDate = &last
	}
	return r
}

// CheckProductionRequirements evaluates the persisted logs.
func (h *Harness) CheckProductionRequirements(ctx context.Context) (Readiness, error) {
	logs, err := h.logs.List(ctx)
	if err != nil {
		return Readiness{}, err
	}
	return Evaluate(logs), nil
}

// Logs returns the persisted test logs.
func (h *Harness) Logs(ctx context.Context) ([]TestLog, error) {
	return h.logs.List(ctx)
}
