// Package uscis is a client for the USCIS Case Status API: OAuth
// client-credentials authentication with token caching, case lookup, and
// classification of upstream failures.
package uscis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ReceiptPattern is the receipt number format: three letters and ten digits.
var ReceiptPattern = regexp.MustCompile(`^[A-Z]{3}\d{10}$`)

// ValidReceipt reports whether s is a well-formed receipt number.
func ValidReceipt(s string) bool { return ReceiptPattern.MatchString(s) }

// Credentials select the API application and environment.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
}

// Complete reports whether both halves of the credential pair are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Endpoints are the token and case-status URLs for both environments.
type Endpoints struct {
	SandboxTokenURL    string
	SandboxBaseURL     string
	ProductionTokenURL string
	ProductionBaseURL  string
}

// DefaultEndpoints returns the public USCIS URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SandboxTokenURL:    "https://api-int.uscis.gov/oauth/accesstoken",
		SandboxBaseURL:     "https://api-int.uscis.gov/case-status",
		ProductionTokenURL: "https://api.uscis.gov/oauth/accesstoken",
		ProductionBaseURL:  "https://api.uscis.gov/case-status",
	}
}

func (e Endpoints) token(sandbox bool) string {
	if sandbox {
		return e.SandboxTokenURL
	}
	return e.ProductionTokenURL
}

func (e Endpoints) base(sandbox bool) string {
	if sandbox {
		return e.SandboxBaseURL
	}
	return e.ProductionBaseURL
}

// AccessToken is a cached bearer token. It is never persisted.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// tokenSlack is how long a cached token must still be valid to be reused.
const tokenSlack = 5 * time.Minute

func (t AccessToken) usable(now time.Time) bool {
	return t.Token != "" && t.ExpiresAt.After(now.Add(tokenSlack))
}

// CaseStatus is the normalized result of a case lookup.
type CaseStatus struct {
	Status      string `json:"status"`
	Date        string `json:"date"`
	FormType    string `json:"formType,omitempty"`
	Description string `json:"description,omitempty"`
}

// ConnectionResult is the outcome of TestConnection.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for both token exchange and lookups.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the upstream URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the case-status API. It owns the credential pair and the
// cached token; the zero value is not usable, construct with New.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	now        func() time.Time
	logger     *slog.Logger

	mu    sync.Mutex
	creds *Credentials
	token *AccessToken
	fault int
}

// New returns an unconfigured client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		endpoints:  DefaultEndpoints(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure replaces the credentials and discards any cached token.
func (c *Client) Configure(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = &creds
	c.token = nil
}

// Credentials returns the configured credentials.
func (c *Client) Credentials() (Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return Credentials{}, false
	}
	return *c.creds, true
}

// Configured reports whether a complete credential pair is set.
func (c *Client) Configured() bool {
	creds, ok := c.Credentials()
	return ok && creds.Complete()
}

// AccessToken returns a cached token that is valid for at least five more
// minutes, or exchanges the credentials for a new one.
func (c *Client) AccessToken(ctx context.Context) (AccessToken, error) {
	c.mu.Lock()
	creds := c.creds
	if c.token != nil && c.token.usable(c.now()) {
		tok := *c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	if creds == nil || !creds.Complete() {
		return AccessToken{}, notConfigured()
	}

	tok, err := c.exchange(ctx, *creds)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			c.clearToken()
		}
		return AccessToken{}, fmt.Errorf("authenticate with USCIS API: %w", err)
	}

	c.mu.Lock()
	c.token = &tok
	c.mu.Unlock()
	c.logger.Debug("obtained access token", "sandbox", creds.Sandbox, "expires_at", tok.ExpiresAt)
	return tok, nil
}

func (c *Client) exchange(ctx context.Context, creds Credentials) (AccessToken, error) {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.endpoints.token(creds.Sandbox),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	start := c.now()
	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return AccessToken{}, classify(re.Response.StatusCode, re.Body)
		}
		return AccessToken{}, &APIError{Kind: ErrRequestFailed, Message: err.Error()}
	}

	if status := fmt.Sprint(tok.Extra("status")); status != "approved" {
		return AccessToken{}, &APIError{
			Kind:       ErrAuthFailed,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("OAuth authentication failed: %s", status),
		}
	}

	expiresAt := tok.Expiry
	if secs, ok := expiresIn(tok.Extra("expires_in")); ok {
		expiresAt = start.Add(time.Duration(secs) * time.Second)
	}
	return AccessToken{Token: tok.AccessToken, ExpiresAt: expiresAt}, nil
}

// expiresIn reads expires_in, which the API sends as a string of seconds.
func expiresIn(v any) (int64, bool) {
	switch n := v.(type) {
	case string:
		secs, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return secs, err == nil
	case float64:
		return int64(n), true
	case json.Number:
		secs, err := n.Int64()
		return secs, err == nil
	default:
		return 0, false
	}
}

func (c *Client) clearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

type caseStatusResponse struct {
	CaseStatus struct {
		ReceiptNumber           string `json:"receiptNumber"`
		FormType                string `json:"formType"`
		SubmittedDate           string `json:"submittedDate"`
		ModifiedDate            string `json:"modifiedDate"`
		CurrentCaseStatusTextEn string `json:"current_case_status_text_en"`
		CurrentCaseStatusDescEn string `json:"current_case_status_desc_en"`
	} `json:"case_status"`
	Message string `json:"message"`
}

// FetchCaseStatus looks up a receipt number. The receipt format is always
// enforced here.
func (c *Client) FetchCaseStatus(ctx context.Context, receipt string) (CaseStatus, error) {
	fault := c.takeFault()
	creds, ok := c.Credentials()
	if !ok || !creds.Complete() {
		return CaseStatus{}, notConfigured()
	}
	if !ValidReceipt(receipt) {
		return CaseStatus{}, invalidReceipt(receipt)
	}

	tok, err := c.AccessToken(ctx)
	if err != nil {
		return CaseStatus{}, err
	}

	if fault != 0 {
		c.logger.Debug("returning injected fault", "receipt", receipt, "status", fault)
		return CaseStatus{}, classify(fault, nil)
	}

	endpoint := strings.TrimSuffix(c.endpoints.base(creds.Sandbox), "/") + "/" + url.PathEscape(receipt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CaseStatus{}, fmt.Errorf("build case status request: %w", err)
	}
	(&oauth2.Token{AccessToken: tok.Token, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CaseStatus{}, &APIError{Kind: ErrRequestFailed, Message: fmt.Sprintf("request case status: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CaseStatus{}, fmt.Errorf("read case status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, body)
		if errors.Is(apiErr, ErrAuthExpired) {
			c.clearToken()
		}
		return CaseStatus{}, apiErr
	}

	var payload caseStatusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return CaseStatus{}, fmt.Errorf("decode case status response: %w", err)
	}
	return CaseStatus{
		Status:      payload.CaseStatus.CurrentCaseStatusTextEn,
		Date:        c.formatDate(payload.CaseStatus.ModifiedDate),
		FormType:    payload.CaseStatus.FormType,
		Description: payload.CaseStatus.CurrentCaseStatusDescEn,
	}, nil
}

func (c *Client) takeFault() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.fault
	c.fault = 0
	return status
}

// formatDate turns "MM-DD-YYYY HH:MM:SS" into "YYYY-MM-DD". Anything else
// yields today's date.
func (c *Client) formatDate(s string) string {
	datePart, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		c.logger.Warn("unexpected modifiedDate format", "value", s)
		return c.now().Format("2006-01-02")
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[0]), pad2(parts[1]))
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// TestConnection reports whether a token exchange succeeds. It never returns
// an error.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	if !c.Configured() {
		return ConnectionResult{Message: "API not configured. Please provide client credentials."}
	}
	if _, err := c.AccessToken(ctx); err != nil {
		return ConnectionResult{Message: err.Error()}
	}
	return ConnectionResult{Success: true, Message: "Successfully connected to USCIS API"}
}
