package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	ErrorTypeNetwork     = "Network"
	ErrorTypeTimeout     = "Timeout"
	ErrorTypeHTTPStatus  = "HTTPStatus"
	ErrorTypeDecode      = "Decode"
	ErrorTypeTooLarge    = "TooLarge"
	ErrorTypeCircuitOpen = "CircuitOpen"
	ErrorTypeCanceled    = "Canceled"
	ErrorTypeValidation  = "Validation"
)

// Sentinels for errors.Is. Matching compares only the Type field.
var (
	ErrNetwork     = &Error{Type: ErrorTypeNetwork}
	ErrTimeout     = &Error{Type: ErrorTypeTimeout}
	ErrHTTPStatus  = &Error{Type: ErrorTypeHTTPStatus}
	ErrDecode      = &Error{Type: ErrorTypeDecode}
	ErrTooLarge    = &Error{Type: ErrorTypeTooLarge}
	ErrCircuitOpen = &Error{Type: ErrorTypeCircuitOpen}
	ErrCanceled    = &Error{Type: ErrorTypeCanceled}
)

// Error describes a failed outbound call. For HTTPStatus errors StatusCode and
// Body hold the last response received.
type Error struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	Endpoint    string
	StatusCode  int
	Body        []byte
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// StatusCode extracts the downstream status from err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// IsTransient reports whether err might succeed on a later call: network
// errors, timeouts, an open circuit, 5xx and 429.
func IsTransient(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeCircuitOpen:
		return true
	case ErrorTypeHTTPStatus:
		return fe.StatusCode >= http.StatusInternalServerError || fe.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}
