package selftest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/casetrack/cli/internal/kv"
)

const (
	logsKey         = "apiTestLogs"
	lastTestDateKey = "lastTestDate"

	// DateLayout is the calendar-day form of TestLog.Date.
	DateLayout = "2006-01-02"
	// TimestampLayout is the instant form of TestLog.Timestamp.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ResponseCodes counts probe outcomes per tracked HTTP status.
type ResponseCodes struct {
	OK              int `json:"200"`
	BadRequest      int `json:"400"`
	Unauthorized    int `json:"401"`
	NotFound        int `json:"404"`
	TooManyRequests int `json:"429"`
	Unavailable     int `json:"503"`
}

// Add counts one response. Untracked codes are ignored.
func (c *ResponseCodes) Add(code int) {
	switch code {
	case 200:
		c.OK++
	case 400:
		c.BadRequest++
	case 401:
		c.Unauthorized++
	case 404:
		c.NotFound++
	case 429:
		c.TooManyRequests++
	case 503:
		c.Unavailable++
	}
}

// Get returns the count for code.
func (c ResponseCodes) Get(code int) int {
	switch code {
	case 200:
		return c.OK
	case 400:
		return c.BadRequest
	case 401:
		return c.Unauthorized
	case 404:
		return c.NotFound
	case 429:
		return c.TooManyRequests
	case 503:
		return c.Unavailable
	}
	return 0
}

// TrackedCodes lists the statuses ResponseCodes counts, in display order.
var TrackedCodes = []int{200, 400, 401, 404, 429, 503}

// QueryResults aggregates one probe battery.
type QueryResults struct {
	Success       int           `json:"success"`
	Error         int           `json:"error"`
	Total         int           `json:"total"`
	ResponseCodes ResponseCodes `json:"responseCodes"`
}

// TestLog is one persisted daily self-test result.
type TestLog struct {
	Date           string       `json:"date"`
	ConnectionTest bool         `json:"connectionTest"`
	QueryResults   QueryResults `json:"queryResults"`
	Timestamp      string       `json:"timestamp"`
	RunID          string       `json:"runId,omitempty"`
}

// storedLog mirrors TestLog with pointers so absent fields can be told apart
// from zero values.
type storedLog struct {
	Date           *string       `json:"date" validate:"required,datetime=2006-01-02"`
	ConnectionTest *bool         `json:"connectionTest" validate:"required"`
	QueryResults   *storedCounts `json:"queryResults" validate:"required"`
	Timestamp      *string       `json:"timestamp" validate:"required"`
	RunID          string        `json:"runId"`
}

type storedCounts struct {
	Success       *int           `json:"success" validate:"required,gte=0"`
	Error         *int           `json:"error" validate:"required,gte=0"`
	Total         *int           `json:"total" validate:"required,gte=0"`
	ResponseCodes *storedCodes   `json:"responseCodes" validate:"required"`
}

type storedCodes struct {
	OK              *int `json:"200" validate:"required,gte=0"`
	BadRequest      *int `json:"400" validate:"required,gte=0"`
	Unauthorized    *int `json:"401" validate:"required,gte=0"`
	NotFound        *int `json:"404" validate:"required,gte=0"`
	TooManyRequests *int `json:"429" validate:"required,gte=0"`
	Unavailable     *int `json:"503" validate:"required,gte=0"`
}

func (c storedCodes) counts() ResponseCodes {
	return ResponseCodes{
		OK:              *c.OK,
		BadRequest:      *c.BadRequest,
		Unauthorized:    *c.Unauthorized,
		NotFound:        *c.NotFound,
		TooManyRequests: *c.TooManyRequests,
		Unavailable:     *c.Unavailable,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeLog(raw json.RawMessage) (TestLog, error) {
	var s storedLog
	if err := json.Unmarshal(raw, &s); err != nil {
		return TestLog{}, err
	}
	if err := validate.Struct(s); err != nil {
		return TestLog{}, err
	}
	return TestLog{
		Date:           *s.Date,
		ConnectionTest: *s.ConnectionTest,
		QueryResults: QueryResults{
			Success:       *s.QueryResults.Success,
			Error:         *s.QueryResults.Error,
			Total:         *s.QueryResults.Total,
			ResponseCodes: s.QueryResults.ResponseCodes.counts(),
		},
		Timestamp: *s.Timestamp,
		RunID:     s.RunID,
	}, nil
}

// LogStore persists the test-log list and the daily gate date.
type LogStore struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewLogStore returns a LogStore over store.
func NewLogStore(store kv.Store, logger *slog.Logger) *LogStore {
	return &LogStore{kv: store, logger: logger}
}

func (s *LogStore) raw(ctx context.Context) ([]json.RawMessage, error) {
	data, ok, err := s.kv.Get(ctx, logsKey)
	if err != nil {
		return nil, fmt.Errorf("read test logs: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("stored test logs are not a list; ignoring them", "error", err)
		return nil, nil
	}
	return entries, nil
}

// List returns the well-formed logs in insertion order. Malformed entries are
// skipped.
func (s *LogStore) List(ctx context.Context) ([]TestLog, error) {
	entries, err := s.raw(ctx)
	if err != nil {
		return nil, err
	}
	logs := make([]TestLog, 0, len(entries))
	for i, raw := range entries {
		l, err := decodeLog(raw)
		if err != nil {
			s.logger.Debug("skipping malformed test log", "index", i, "error", err)
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Append adds l to the end of the list. Existing entries, malformed or not,
// are kept as stored.
func (s *LogStore) Append(ctx context.Context, l TestLog) error {
	entries, err := s.raw(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode test log: %w", err)
	}
	entries = append(entries, encoded)
	if err := kv.SetJSON(ctx, s.kv, logsKey, entries); err != nil {
		return fmt.Errorf("write test logs: %w", err)
	}
	return nil
}

// LastTestDate returns the day the daily run last happened.
func (s *LogStore) LastTestDate(ctx context.Context) (string, bool, error) {
	var date *string
	ok, err := kv.GetJSON(ctx, s.kv, lastTestDateKey, &date)
	if err != nil {
		return "", false, fmt.Errorf("read last test date: %w", err)
	}
	if !ok || date == nil {
		return "", false, nil
	}
	return *date, true, nil
}

// SetLastTestDate records day as the last daily run.
func (s *LogStore) SetLastTestDate(ctx context.Context, day string) error {
	if err := kv.SetJSON(ctx, s.kv, lastTestDateKey, day); err != nil {
		return fmt.Errorf("write last test date: %w", err)
	}
	return nil
}

func codeLabel(code int) string {
	if code == 0 {
		return "none"
	}
	return strconv.Itoa(code)
}
