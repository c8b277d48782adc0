// Package casestatus resolves a receipt number to a case status, either
// through the USCIS API or from the debug override and deterministic mock.
package casestatus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/internal/uscis"
)

// CaseStatus is the resolved status of a case.
type CaseStatus = uscis.CaseStatus

// SettingsReader supplies the current settings.
type SettingsReader interface {
	Get(ctx context.Context) (settings.AppSettings, error)
}

// StatusFetcher is the part of the API client the resolver drives.
type StatusFetcher interface {
	Configure(creds uscis.Credentials)
	Credentials() (uscis.Credentials, bool)
	FetchCaseStatus(ctx context.Context, receipt string) (uscis.CaseStatus, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStatuses replaces the mock status list.
func WithStatuses(statuses []string) Option {
	return func(r *Resolver) {
		if len(statuses) > 0 {
			r.statuses = statuses
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver picks the source of a case status from the current settings.
type Resolver struct {
	settings SettingsReader
	api      StatusFetcher
	statuses []string
	now      func() time.Time
	logger   *slog.Logger
}

// NewResolver returns a resolver reading settings from s and calling api when
// the real API is enabled.
func NewResolver(s SettingsReader, api StatusFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		settings: s,
		api:      api,
		statuses: DefaultStatuses,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the status for receipt.
//
// With the real API enabled and debug mode off, the API result or its error is
// returned as is; there is no fallback to mock data. Otherwise the receipt
// format is checked (skipped in debug mode), the debug override wins when set,
// and the mock list supplies the status.
func (r *Resolver) Resolve(ctx context.Context, receipt string) (CaseStatus, error) {
	s, err := r.settings.Get(ctx)
	if err != nil {
		return CaseStatus{}, fmt.Errorf("load settings: %w", err)
	}

	if s.UseRealAPI && !s.DebugMode {
		r.configure(s)
		r.logger.Debug("resolving case status via API", "receipt", receipt, "sandbox", s.USCISSandboxMode)
		return r.api.FetchCaseStatus(ctx, receipt)
	}

	if !s.DebugMode && !uscis.ValidReceipt(receipt) {
		return CaseStatus{}, fmt.Errorf("%w: %q (expected format ABC1234567890)", uscis.ErrInvalidReceipt, receipt)
	}

	today := r.now().Format("2006-01-02")
	if s.DebugMode && s.MockCaseStatus != nil && *s.MockCaseStatus != "" {
		r.logger.Debug("using debug status override", "receipt", receipt)
		return CaseStatus{Status: *s.MockCaseStatus, Date: today}, nil
	}
	return CaseStatus{Status: MockStatus(receipt, r.statuses), Date: today}, nil
}

// configure pushes the stored credentials into the client when they differ
// from what it already holds, so a cached token survives between calls.
func (r *Resolver) configure(s settings.AppSettings) {
	want := uscis.Credentials{
		ClientID:     s.USCISClientID,
		ClientSecret: s.USCISClientSecret,
		Sandbox:      s.USCISSandboxMode,
	}
	if have, ok := r.api.Credentials(); ok && have == want {
		return
	}
	r.api.Configure(want)
}
