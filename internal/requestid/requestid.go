// Package requestid carries the inbound request ID through a context so the
// outbound fetch layer can forward it.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used in both directions.
const Header = "X-Request-Id"

type contextKey struct{}

// New returns a fresh random ID.
func New() string {
	return uuid.NewString()
}

// FromHeader keeps a caller-supplied ID if present, otherwise mints one.
func FromHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > 128 {
		return New()
	}
	return value
}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
