package fetch

import (
	"net/http"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/requestid"
)

// RequestIDMiddleware forwards the inbound request ID, when the context has
// one, on every outbound attempt.
func RequestIDMiddleware() Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if id := requestid.FromContext(req.Context()); id != "" && req.Header.Get(requestid.Header) == "" {
			req.Header.Set(requestid.Header, id)
		}
		return next.RoundTrip(req)
	}
}

// UserAgentMiddleware sets User-Agent unless the request already has one.
func UserAgentMiddleware(userAgent string) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}
		return next.RoundTrip(req)
	}
}
