package charter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request the caller must fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a listing the marketplace does not know.
	ErrNotFound = errors.New("not found")
)

// InputError is an ErrInvalidInput whose message can be shown to the caller
// as is.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalidf builds an InputError.
func Invalidf(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
