// Package fetch performs outbound HTTP calls with bounded retries.
//
// A Client retries on transport failures and non-2xx responses, waiting
// between attempts according to a backoff.Strategy (exponential by default,
// linear available). Every attempt runs under its own timeout; an attempt that
// times out is reported immediately as a Timeout error and is not retried.
//
// Basic usage:
//
//	client := fetch.New(
//		fetch.WithMaxAttempts(3),
//		fetch.WithBaseDelay(time.Second),
//		fetch.WithTimeout(10*time.Second),
//	)
//	var out SearchResponse
//	err := client.DoJSON(ctx, fetch.Request{Method: http.MethodGet, URL: u}, &out)
//
// Failures are *Error values; match them with errors.Is against ErrTimeout,
// ErrNetwork, ErrHTTPStatus, ErrDecode, ErrCircuitOpen or ErrCanceled.
package fetch
