package util

import "time"

// OrDash returns the string if non-empty, otherwise returns "-".
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatDay renders t as a calendar day in its own location, or "-" for the zero time.
func FormatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Mon, Jan 2 2006")
}

// YesNo renders a flag for tables.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
