package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned by UpdateOne for a key that is not part of AppSettings.
var ErrUnknownKey = errors.New("unknown settings key")

type field struct {
	key    string
	secret bool
	get    func(AppSettings) string
	set    func(*AppSettings, string) error
}

func boolField(key string, ptr func(*AppSettings) *bool) field {
	return field{
		key: key,
		get: func(s AppSettings) string { return strconv.FormatBool(*ptr(&s)) },
		set: func(s *AppSettings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*ptr(s) = b
			return nil
		},
	}
}

func stringField(key string, secret bool, ptr func(*AppSettings) *string) field {
	return field{
		key:    key,
		secret: secret,
		get:    func(s AppSettings) string { return *ptr(&s) },
		set: func(s *AppSettings, v string) error {
			*ptr(s) = strings.TrimSpace(v)
			return nil
		},
	}
}

var fields = []field{
	boolField("notificationsEnabled", func(s *AppSettings) *bool { return &s.NotificationsEnabled }),
	{
		key: "reminderDaysBefore",
		get: func(s AppSettings) string { return strconv.Itoa(s.ReminderDaysBefore) },
		set: func(s *AppSettings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("expected a whole number of days, got %q", v)
			}
			if n < 0 {
				return fmt.Errorf("must not be negative, got %d", n)
			}
			s.ReminderDaysBefore = n
			return nil
		},
	},
	boolField("showBrowserNotifications", func(s *AppSettings) *bool { return &s.ShowBrowserNotifications }),
	boolField("showInAppReminders", func(s *AppSettings) *bool { return &s.ShowInAppReminders }),
	boolField("debugMode", func(s *AppSettings) *bool { return &s.DebugMode }),
	{
		// An empty value clears the override.
		key: "mockCaseStatus",
		get: func(s AppSettings) string {
			if s.MockCaseStatus == nil {
				return ""
			}
			return *s.MockCaseStatus
		},
		set: func(s *AppSettings, v string) error {
			v = strings.TrimSpace(v)
			if v == "" {
				s.MockCaseStatus = nil
				return nil
			}
			s.MockCaseStatus = &v
			return nil
		},
	},
	boolField("useRealApi", func(s *AppSettings) *bool { return &s.UseRealAPI }),
	stringField("uscisClientId", false, func(s *AppSettings) *string { return &s.USCISClientID }),
	stringField("uscisClientSecret", true, func(s *AppSettings) *string { return &s.USCISClientSecret }),
	boolField("uscisSandboxMode", func(s *AppSettings) *bool { return &s.USCISSandboxMode }),
}

func fieldByKey(key string) (field, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.key, key) {
			return f, true
		}
	}
	return field{}, false
}

// Keys lists every settings key in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Entry is one key/value pair for display.
type Entry struct {
	Key   string
	Value string
}

// Entries renders s as ordered key/value pairs with secrets masked.
func (s AppSettings) Entries() []Entry {
	out := make([]Entry, 0, len(fields))
	for _, f := range fields {
		v := f.get(s)
		if f.secret && v != "" {
			v = "********"
		}
		out = append(out, Entry{Key: f.key, Value: v})
	}
	return out
}
