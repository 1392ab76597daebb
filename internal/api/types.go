// Package api provides the HTTP client and types for the liturgical ordo API.
package api

import (
	"context"
	"errors"
	"fmt"
)

// DayRecord is one day of liturgical metadata as returned by the API.
//
// The record is opaque to the cache: only the date key is interpreted, every
// other field (feast_name, liturgical_season, liturgical_color, feast_rank,
// is_holy_day, commemorations, mass_proper, ...) is passed through unchanged.
type DayRecord map[string]interface{}

// DateKey returns the record's YYYY-MM-DD key, preferring "date" over the
// older "date_str" field. Returns "" when neither is present.
func (r DayRecord) DateKey() string {
	if d, ok := r["date"].(string); ok && d != "" {
		return d
	}
	if d, ok := r["date_str"].(string); ok && d != "" {
		return d
	}
	return ""
}

// String returns a string field or "".
func (r DayRecord) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean field or false.
func (r DayRecord) Bool(field string) bool {
	if v, ok := r[field].(bool); ok {
		return v
	}
	return false
}

// MonthResponse is the body of GET /month/{year}/{month}.
type MonthResponse struct {
	Year  int         `json:"year,omitempty"`
	Month int         `json:"month,omitempty"`
	Days  []DayRecord `json:"days"`
}

// Transport is the interface for making API requests.
// Get returns the response body of a successful (2xx) request.
type Transport interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// ConnectivityError is returned when the pre-flight probe against the API
// root fails. It means "API unreachable", never "no data for this period".
type ConnectivityError struct {
	BaseURL string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("API not accessible at %s: %v", e.BaseURL, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// ErrMalformedResponse is returned when a response body is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed API response")

// IsConnectivityError reports whether err is (or wraps) a ConnectivityError.
func IsConnectivityError(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
