package auth

import (
	"errors"
	"fmt"
)

// Stages at which token acquisition can fail.
const (
	StageSign     = "sign"
	StageExchange = "exchange"
)

// ErrMissingKey is returned when no signing key is configured.
var ErrMissingKey = errors.New("auth: private key or key id not configured")

// Error reports a failed token acquisition. StatusCode is the token
// endpoint's answer when it gave one.
type Error struct {
	Stage      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("auth %s failed (status %d): %v", e.Stage, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("auth %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
