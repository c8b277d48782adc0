// Package settings holds the single AppSettings record of a casetrack install.
//
// Reads always start from a complete default record and decode the persisted
// document on top of it, so a key missing from storage takes its default and a
// partially written record heals on the next read.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/casetrack/cli/internal/kv"
)

// StorageKey is where the settings record lives in the KV store.
const StorageKey = "appSettings"

// AppSettings is the user configuration.
type AppSettings struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
	// ReminderDaysBefore is the inclusive lead window in days.
	ReminderDaysBefore int `json:"reminderDaysBefore" validate:"gte=0"`

	ShowBrowserNotifications bool `json:"showBrowserNotifications"`
	ShowInAppReminders       bool `json:"showInAppReminders"`

	DebugMode      bool    `json:"debugMode"`
	MockCaseStatus *string `json:"mockCaseStatus,omitempty"`

	UseRealAPI        bool   `json:"useRealApi"`
	USCISClientID     string `json:"uscisClientId"`
	USCISClientSecret string `json:"uscisClientSecret"`
	USCISSandboxMode  bool   `json:"uscisSandboxMode"`
}

// Defaults returns the canonical default record.
func Defaults() AppSettings {
	return AppSettings{
		NotificationsEnabled:     true,
		ReminderDaysBefore:       3,
		ShowBrowserNotifications: true,
		ShowInAppReminders:       true,
		DebugMode:                false,
		MockCaseStatus:           nil,
		UseRealAPI:               false,
		USCISClientID:            "",
		USCISClientSecret:        "",
		USCISSandboxMode:         true,
	}
}

// HasCredentials reports whether both halves of the client credential pair are set.
func (s AppSettings) HasCredentials() bool {
	return s.USCISClientID != "" && s.USCISClientSecret != ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (s AppSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Decode parses a persisted record over the defaults. Keys absent from data,
// keys holding a value of the wrong type and out-of-range values all keep
// their default. The returned error reports what was healed; the record is
// usable either way.
func Decode(data []byte) (AppSettings, error) {
	s := Defaults()
	if len(data) == 0 {
		return s, nil
	}

	var decodeErr error
	if err := json.Unmarshal(data, &s); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Defaults(), fmt.Errorf("decode settings: %w", err)
		}
		// encoding/json skips mistyped fields and keeps decoding the rest.
		decodeErr = fmt.Errorf("decode settings: %w", err)
	}
	if s.ReminderDaysBefore < 0 {
		s.ReminderDaysBefore = Defaults().ReminderDaysBefore
	}
	return s, decodeErr
}

// Store reads and writes the settings record.
type Store struct {
	kv      kv.Store
	secrets SecretStore
}

// Option configures a Store.
type Option func(*Store)

// WithSecrets keeps the client secret in s instead of the KV record.
func WithSecrets(s SecretStore) Option {
	return func(st *Store) { st.secrets = s }
}

// NewStore returns a settings store over the given KV store.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current settings. When nothing is persisted yet the default
// record is written as a side effect. A record that no longer parses is
// replaced by defaults rather than failing the caller.
func (s *Store) Get(ctx context.Context) (AppSettings, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return Defaults(), fmt.Errorf("read settings: %w", err)
	}
	if !ok {
		def := Defaults()
		if err := s.Save(ctx, def); err != nil {
			return def, err
		}
		return def, nil
	}

	// Decode errors are healed inside Decode; the record is complete regardless.
	settings, _ := Decode(raw)
	if s.secrets != nil && settings.USCISClientID != "" && settings.USCISClientSecret == "" {
		secret, err := s.secrets.Get(settings.USCISClientID)
		if err != nil {
			return settings, fmt.Errorf("read client secret: %w", err)
		}
		settings.USCISClientSecret = secret
	}
	return settings, nil
}

// ErrSecretWithoutClientID is returned when a keyring-backed store is asked
// to save a client secret with no client id to file it under.
var ErrSecretWithoutClientID = errors.New("a client secret needs a client id")

// Save replaces the whole record. With a SecretStore attached the secret is
// filed under the client id, and the entry of a replaced client id is removed.
func (s *Store) Save(ctx context.Context, settings AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if s.secrets == nil {
		if err := kv.SetJSON(ctx, s.kv, StorageKey, settings); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		return nil
	}

	if settings.USCISClientID == "" && settings.USCISClientSecret != "" {
		return ErrSecretWithoutClientID
	}
	previous, err := s.storedClientID(ctx)
	if err != nil {
		return err
	}

	persisted := settings
	persisted.USCISClientSecret = ""
	if settings.USCISClientID != "" {
		if settings.USCISClientSecret == "" {
			if err := s.secrets.Delete(settings.USCISClientID); err != nil {
				return fmt.Errorf("clear client secret: %w", err)
			}
		} else if err := s.secrets.Set(settings.USCISClientID, settings.USCISClientSecret); err != nil {
			return fmt.Errorf("store client secret: %w", err)
		}
	}

	if err := kv.SetJSON(ctx, s.kv, StorageKey, persisted); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if previous != "" && previous != settings.USCISClientID {
		if err := s.secrets.Delete(previous); err != nil {
			return fmt.Errorf("clear secret of replaced client id: %w", err)
		}
	}
	return nil
}

// storedClientID is the client id of the persisted record, if any.
func (s *Store) storedClientID(ctx context.Context) (string, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return "", fmt.Errorf("read settings: %w", err)
	}
	if !ok {
		return "", nil
	}
	stored, _ := Decode(raw)
	return stored.USCISClientID, nil
}

// UpdateOne sets a single key, addressed by its JSON name, from its textual
// form and leaves every other key untouched.
func (s *Store) UpdateOne(ctx context.Context, key, value string) (AppSettings, error) {
	f, ok := fieldByKey(key)
	if !ok {
		return AppSettings{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	current, err := s.Get(ctx)
	if err != nil {
		return current, err
	}
	if err := f.set(&current, value); err != nil {
		return current, fmt.Errorf("%s: %w", key, err)
	}
	if err := s.Save(ctx, current); err != nil {
		return current, err
	}
	return current, nil
}

// Reset overwrites the record with the defaults.
func (s *Store) Reset(ctx context.Context) error {
	if s.secrets != nil {
		current, err := s.Get(ctx)
		if err == nil && current.USCISClientID != "" {
			if err := s.secrets.Delete(current.USCISClientID); err != nil {
				return fmt.Errorf("clear client secret: %w", err)
			}
		}
	}
	return s.Save(ctx, Defaults())
}
