package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/casetrack/cli/internal/kv"
	"github.com/casetrack/cli/internal/settings"
	"github.com/casetrack/cli/internal/uscis"
)

func newTestSettingsStore(t *testing.T) *settings.Store {
	t.Helper()
	keyring.MockInit()
	return settings.NewStore(kv.NewMemory(), settings.WithSecrets(settings.NewKeyring()))
}

func TestSettingsShow_MasksSecret(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	s := settings.Defaults()
	s.USCISClientID = "client-1"
	s.USCISClientSecret = "hunter2"
	require.NoError(t, store.Save(ctx, s))

	c := SettingsCmd{settings: store}
	require.NoError(t, c.Show(ctx, ShowSettingsInput{}))

	out := outBuf.String()
	assert.Contains(t, out, "reminderDaysBefore")
	assert.Contains(t, out, "client-1")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
}

func TestSettingsShow_JSONOutput(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	s := settings.Defaults()
	s.USCISClientID = "client-1"
	s.USCISClientSecret = "hunter2"
	require.NoError(t, store.Save(ctx, s))

	c := SettingsCmd{settings: store}
	out, err := captureJSON(t, func() error {
		return c.Show(ctx, ShowSettingsInput{Output: "json"})
	})
	require.NoError(t, err)

	var got settings.AppSettings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.ReminderDaysBefore)
	assert.Equal(t, "client-1", got.USCISClientID)
	assert.Equal(t, "********", got.USCISClientSecret)
}

func TestSettingsSet(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	c := SettingsCmd{settings: store}

	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "reminderDaysBefore", Value: "7"}))
	assert.Contains(t, outBuf.String(), "reminderDaysBefore = 7")

	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "mockCaseStatus", Value: "Case Was Approved"}))
	assert.Contains(t, outBuf.String(), "only applies while debugMode is true")
	assert.NotContains(t, outBuf.String(), "not a known USCIS status")

	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "debugMode", Value: "true"}))
	outBuf.Reset()
	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "mockCaseStatus", Value: "Case Was Lost"}))
	assert.Contains(t, outBuf.String(), "not a known USCIS status")
	assert.NotContains(t, outBuf.String(), "only applies while debugMode")
	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "mockCaseStatus", Value: "Case Was Approved"}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ReminderDaysBefore)
	require.NotNil(t, got.MockCaseStatus)
	assert.Equal(t, "Case Was Approved", *got.MockCaseStatus)
	assert.True(t, got.NotificationsEnabled, "other keys untouched")
}

func TestSettingsSet_Errors(t *testing.T) {
	setupStdoutCapture(t)

	c := SettingsCmd{settings: newTestSettingsStore(t)}
	ctx := context.Background()

	err := c.Set(ctx, SetSettingInput{Key: "theme", Value: "dark"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, settings.ErrUnknownKey))
	assert.Contains(t, outBuf.String(), "Valid keys:")

	assert.Error(t, c.Set(ctx, SetSettingInput{Key: "reminderDaysBefore", Value: "-1"}))
	assert.Error(t, c.Set(ctx, SetSettingInput{Key: "debugMode", Value: "maybe"}))
}

func TestSettingsReset(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	c := SettingsCmd{settings: store}
	require.NoError(t, c.Set(ctx, SetSettingInput{Key: "debugMode", Value: "true"}))

	require.NoError(t, c.Reset(ctx))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), got)
}

type FakeConnectionTester struct {
	configured []uscis.Credentials

	TestConnectionFunc func(ctx context.Context) uscis.ConnectionResult
}

func (f *FakeConnectionTester) Configure(creds uscis.Credentials) {
	f.configured = append(f.configured, creds)
}

func (f *FakeConnectionTester) TestConnection(ctx context.Context) uscis.ConnectionResult {
	if f.TestConnectionFunc != nil {
		return f.TestConnectionFunc(ctx)
	}
	return uscis.ConnectionResult{Success: true, Message: "Successfully connected to USCIS API"}
}

func TestCredentialsSet_StoresSecretInKeyring(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	c := CredentialsCmd{store: store, tester: &FakeConnectionTester{}}

	require.NoError(t, c.Set(ctx, SetCredentialsInput{ClientID: " client-1 ", ClientSecret: "s3cret", Sandbox: true}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "client-1", got.USCISClientID)
	assert.Equal(t, "s3cret", got.USCISClientSecret)
	assert.True(t, got.USCISSandboxMode)
	assert.False(t, got.UseRealAPI)

	secret, err := keyring.Get(settings.KeyringService, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
	assert.Contains(t, outBuf.String(), "Saved sandbox credentials")
	assert.Contains(t, outBuf.String(), "still use mock data")
}

func TestCredentialsSet_EnableAndValidation(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	c := CredentialsCmd{store: store, tester: &FakeConnectionTester{}}

	assert.Error(t, c.Set(ctx, SetCredentialsInput{ClientSecret: "s"}))
	assert.Error(t, c.Set(ctx, SetCredentialsInput{ClientID: "id"}))

	require.NoError(t, c.Set(ctx, SetCredentialsInput{ClientID: "id", ClientSecret: "s", Enable: true}))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.UseRealAPI)
	assert.False(t, got.USCISSandboxMode)
}

func TestCredentialsTest(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	tester := &FakeConnectionTester{}
	c := CredentialsCmd{store: store, tester: tester}
	require.NoError(t, c.Set(ctx, SetCredentialsInput{ClientID: "id", ClientSecret: "s", Sandbox: true}))

	require.NoError(t, c.Test(ctx))
	require.Len(t, tester.configured, 1)
	assert.Equal(t, uscis.Credentials{ClientID: "id", ClientSecret: "s", Sandbox: true}, tester.configured[0])
	assert.Contains(t, outBuf.String(), "Successfully connected to USCIS API")

	tester.TestConnectionFunc = func(context.Context) uscis.ConnectionResult {
		return uscis.ConnectionResult{Message: "authenticate with USCIS API: OAuth authentication failed: pending"}
	}
	assert.Error(t, c.Test(ctx))
	assert.Contains(t, outBuf.String(), "OAuth authentication failed")
}

func TestCredentialsTest_WithoutCredentialsSkipsConfigure(t *testing.T) {
	setupStdoutCapture(t)

	tester := &FakeConnectionTester{TestConnectionFunc: func(context.Context) uscis.ConnectionResult {
		return uscis.ConnectionResult{Message: "API not configured. Please provide client credentials."}
	}}
	c := CredentialsCmd{store: newTestSettingsStore(t), tester: tester}

	assert.Error(t, c.Test(context.Background()))
	assert.Empty(t, tester.configured)
	assert.Contains(t, outBuf.String(), "API not configured")
}

func TestCredentialsClear(t *testing.T) {
	setupStdoutCapture(t)

	store := newTestSettingsStore(t)
	ctx := context.Background()
	c := CredentialsCmd{store: store, tester: &FakeConnectionTester{}}
	require.NoError(t, c.Set(ctx, SetCredentialsInput{ClientID: "id", ClientSecret: "s", Enable: true}))

	require.NoError(t, c.Clear(ctx))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.USCISClientID)
	assert.Empty(t, got.USCISClientSecret)
	assert.False(t, got.UseRealAPI)
	secret, err := keyring.Get(settings.KeyringService, "id")
	assert.Empty(t, secret)
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	outBuf.Reset()
	require.NoError(t, c.Clear(ctx))
	assert.Contains(t, outBuf.String(), "No credentials stored")
}
