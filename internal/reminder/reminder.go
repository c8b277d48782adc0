// Package reminder stores the per-category appointment reminders and decides
// which of them are due.
package reminder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Category is the closed set of appointment kinds a reminder can be filed under.
type Category string

const (
	Biometrics Category = "biometrics"
	Interview  Category = "interview"
	RFE        Category = "rfe"
)

// Categories lists every category in display order.
var Categories = []Category{Biometrics, Interview, RFE}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reminder category %q (want one of biometrics, interview, rfe)", s)
}

// Label is the human-readable name of the category.
func (c Category) Label() string {
	switch c {
	case Biometrics:
		return "Biometrics Appointment"
	case Interview:
		return "Interview"
	case RFE:
		return "RFE Response Deadline"
	default:
		return string(c)
	}
}

var _ pflag.Value = (*Category)(nil)

func (c *Category) String() string { return string(*c) }

func (c *Category) Set(s string) error {
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Category) Type() string { return "category" }

// Reminder is one scheduled appointment.
type Reminder struct {
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

// reminderHour is the local hour a calendar day is pinned to, which keeps the
// stored instant on the intended day under any nearby timezone offset.
const reminderHour = 12

// DateLayout is the calendar-day form reminders are entered in.
const DateLayout = "2006-01-02"

// NormalizeDate pins the calendar day of t to noon in loc.
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, reminderHour, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD day in loc and normalizes it.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return NormalizeDate(t, loc), nil
}

// Set holds at most one reminder per category.
type Set struct {
	Biometrics *Reminder `json:"biometrics,omitempty"`
	Interview  *Reminder `json:"interview,omitempty"`
	RFE        *Reminder `json:"rfe,omitempty"`
}

func (s *Set) slot(c Category) **Reminder {
	switch c {
	case Biometrics:
		return &s.Biometrics
	case Interview:
		return &s.Interview
	case RFE:
		return &s.RFE
	default:
		panic(fmt.Sprintf("reminder: unknown category %q", c))
	}
}

// Get returns the reminder filed under c, if any.
func (s Set) Get(c Category) (Reminder, bool) {
	r := *s.slot(c)
	if r == nil {
		return Reminder{}, false
	}
	return *r, true
}

// Put files r under c, replacing any previous reminder.
func (s *Set) Put(c Category, r Reminder) {
	*s.slot(c) = &r
}

// Clear removes the reminder filed under c.
func (s *Set) Clear(c Category) {
	*s.slot(c) = nil
}

// Len is the number of live reminders.
func (s Set) Len() int {
	n := 0
	for _, c := range Categories {
		if _, ok := s.Get(c); ok {
			n++
		}
	}
	return n
}

// Entry pairs a reminder with its category.
type Entry struct {
	Category Category `json:"category"`
	Reminder Reminder `json:"reminder"`
}

// Entries returns the live reminders in category order.
func (s Set) Entries() []Entry {
	var out []Entry
	for _, c := range Categories {
		if r, ok := s.Get(c); ok {
			out = append(out, Entry{Category: c, Reminder: r})
		}
	}
	return out
}

// Changed lists the categories whose reminder differs between a and b.
func Changed(a, b Set) []Category {
	var out []Category
	for _, c := range Categories {
		ra, oka := a.Get(c)
		rb, okb := b.Get(c)
		if oka != okb || (oka && (!ra.Date.Equal(rb.Date) || ra.Title != rb.Title || ra.Message != rb.Message)) {
			out = append(out, c)
		}
	}
	return out
}

// DecodeSet parses a persisted reminder map. Unknown keys are ignored and an
// entry that fails to parse is dropped without affecting the others.
func DecodeSet(data []byte) (Set, error) {
	var set Set
	if len(data) == 0 {
		return set, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return set, fmt.Errorf("decode reminders: %w", err)
	}
	for _, c := range Categories {
		v, ok := raw[string(c)]
		if !ok || string(v) == "null" {
			continue
		}
		var r Reminder
		if err := json.Unmarshal(v, &r); err != nil || r.Date.IsZero() {
			continue
		}
		set.Put(c, r)
	}
	return set, nil
}
