package uscis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every *APIError unwraps to exactly one of these.
var (
	ErrNotConfigured      = errors.New("uscis: not configured")
	ErrInvalidReceipt     = errors.New("uscis: invalid receipt number")
	ErrAuthExpired        = errors.New("uscis: authentication expired")
	ErrAuthFailed         = errors.New("uscis: authentication failed")
	ErrCaseNotFound       = errors.New("uscis: case not found")
	ErrServiceUnavailable = errors.New("uscis: service unavailable")
	ErrRequestFailed      = errors.New("uscis: request failed")
)

// APIError is a classified failure from the case-status API or from local
// validation in front of it.
type APIError struct {
	Kind       error
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Kind }

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

const (
	defaultUnavailableMessage = "USCIS API service is currently unavailable."
	operatingHoursHint        = "Note: USCIS Sandbox API operates Monday-Friday, 7:00 AM - 8:00 PM EST. Please try again during these hours."
)

// classify maps a non-2xx response onto an *APIError.
func classify(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = ErrAuthExpired
		e.Message = "Authentication expired. Please try again."
	case http.StatusNotFound:
		e.Kind = ErrCaseNotFound
		e.Message = "Case not found. Please check your receipt number."
	case http.StatusServiceUnavailable:
		e.Kind = ErrServiceUnavailable
		e.Message = upstreamMessage(body, defaultUnavailableMessage) + "\n\n" + operatingHoursHint
	default:
		e.Kind = ErrRequestFailed
		e.Message = fmt.Sprintf("API request failed: %d %s - %s", status, http.StatusText(status), strings.TrimSpace(string(body)))
	}
	return e
}

// upstreamMessage pulls error.message out of a JSON error body.
func upstreamMessage(body []byte, fallback string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return fallback
	}
	return payload.Error.Message
}

func invalidReceipt(receipt string) *APIError {
	return &APIError{
		Kind:       ErrInvalidReceipt,
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("Invalid receipt number format %q. Expected format: ABC1234567890", receipt),
	}
}

func notConfigured() *APIError {
	return &APIError{
		Kind:    ErrNotConfigured,
		Message: "USCIS API not configured. Please provide client credentials.",
	}
}
