package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/backoff"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/requestid"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RetryCondition decides whether a finished attempt should be retried. resp
// is nil when err is set; its body has already been consumed.
type RetryCondition func(resp *http.Response, err error) bool

// Middleware wraps the transport for every attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Request is replayable: Body is resent on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Endpoint labels logs and metrics; defaults to host+path.
	Endpoint string
}

// NewJSONRequest encodes body as the JSON payload of a request.
func NewJSONRequest(method, url string, body any) (Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("fetch: encode request body: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return Request{Method: method, URL: url, Header: header, Body: payload}, nil
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Client is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	jitter          float64
	timeout         time.Duration
	strategy        backoff.Strategy
	backoff         *backoff.Calculator
	retryCondition  RetryCondition
	circuitBreaker  *CircuitBreaker
	middleware      []Middleware
	metrics         *metrics.Collector
	logger          Logger
	maxBodyBytes    int64
	validationError error
}

// New constructs a Client using the provided functional options.
// Configuration problems are reported by ValidationError and by every call.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:     &http.Client{},
		maxAttempts:    3,
		baseDelay:      time.Second,
		maxDelay:       30 * time.Second,
		timeout:        10 * time.Second,
		strategy:       backoff.ExponentialStrategy{},
		retryCondition: DefaultRetryCondition,
		logger:         nopLogger{},
		maxBodyBytes:   10 << 20,
	}

	for _, option := range options {
		option(client)
	}

	client.backoff = backoff.NewCalculator(client.strategy, client.baseDelay, client.maxDelay, client.jitter)
	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}
	return client
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// DefaultRetryCondition retries transport failures and any non-2xx status.
func DefaultRetryCondition(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return !isSuccess(resp.StatusCode)
}

// DoJSON performs req and decodes the 2xx body into out. A nil out discards
// the body.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{
			Type:        ErrorTypeDecode,
			Message:     "response body is not valid JSON",
			Cause:       err,
			RequestID:   requestid.FromContext(ctx),
			Method:      req.method(),
			URL:         req.URL,
			Endpoint:    req.endpoint(),
			StatusCode:  resp.StatusCode,
			Attempt:     resp.Attempts,
			MaxAttempts: c.maxAttempts,
			Timestamp:   time.Now(),
		}
	}
	return nil
}

// Do performs req, retrying until it gets a 2xx response, the attempts run
// out, an attempt times out, or ctx ends.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := time.Now()
	method := req.method()
	endpoint := req.endpoint()
	rid := requestid.FromContext(ctx)

	c.metrics.RecordDownstreamStart(method, endpoint)
	defer func() {
		c.metrics.RecordDownstreamEnd(method, endpoint)
		c.metrics.RecordDownstreamDuration(method, endpoint, time.Since(start))
	}()

	c.logger.Debug("starting request", "request_id", rid, "method", method, "endpoint", endpoint)

	newErr := func(errorType, message string, cause error, attempt int) *Error {
		return &Error{
			Type:        errorType,
			Message:     message,
			Cause:       cause,
			RequestID:   rid,
			Method:      method,
			URL:         req.URL,
			Endpoint:    endpoint,
			Attempt:     attempt,
			MaxAttempts: c.maxAttempts,
			Timestamp:   time.Now(),
			Duration:    time.Since(start),
		}
	}

	for attempt := 0; ; attempt++ {
		if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
			c.logger.Warn("circuit breaker open", "request_id", rid, "endpoint", endpoint, "breaker", c.circuitBreaker.Name())
			c.metrics.RecordError(ErrorTypeCircuitOpen, endpoint)
			return nil, newErr(ErrorTypeCircuitOpen, "circuit breaker is open", nil, attempt)
		}

		if attempt > 0 {
			c.logger.Info("retry attempt", "request_id", rid, "attempt", attempt+1, "max_attempts", c.maxAttempts, "endpoint", endpoint)
			c.metrics.RecordRetry(method, endpoint, attempt)
		}

		resp, body, timedOut, err := c.attempt(ctx, req)
		n := attempt + 1

		var failure *Error
		switch {
		case err != nil && ctx.Err() != nil:
			c.metrics.RecordError(ErrorTypeCanceled, endpoint)
			return nil, newErr(ErrorTypeCanceled, "request canceled", ctx.Err(), n)
		case errors.Is(err, errBodyTooLarge):
			c.recordSuccess()
			c.metrics.RecordError(ErrorTypeTooLarge, endpoint)
			c.logger.Warn("response body too large", "request_id", rid, "endpoint", endpoint, "limit", c.maxBodyBytes)
			return nil, newErr(ErrorTypeTooLarge, fmt.Sprintf("response body exceeds %d bytes", c.maxBodyBytes), nil, n)
		case timedOut:
			c.recordFailure()
			c.metrics.RecordError(ErrorTypeTimeout, endpoint)
			c.logger.Warn("request timed out", "request_id", rid, "endpoint", endpoint, "timeout", c.timeout)
			return nil, newErr(ErrorTypeTimeout, "request timed out", err, n)
		case err != nil:
			c.recordFailure()
			c.metrics.RecordError(ErrorTypeNetwork, endpoint)
			failure = newErr(ErrorTypeNetwork, "network request failed", err, n)
		case !isSuccess(resp.StatusCode):
			if resp.StatusCode >= http.StatusInternalServerError {
				c.recordFailure()
			} else {
				c.recordSuccess()
			}
			c.metrics.RecordDownstream(method, endpoint, resp.StatusCode)
			c.metrics.RecordError(ErrorTypeHTTPStatus, endpoint)
			failure = newErr(ErrorTypeHTTPStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil, n)
			failure.StatusCode = resp.StatusCode
			failure.Body = body
		default:
			c.recordSuccess()
			c.metrics.RecordDownstream(method, endpoint, resp.StatusCode)
			return &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       body,
				Attempts:   n,
			}, nil
		}

		if n >= c.maxAttempts || !c.retryCondition(resp, err) {
			c.logger.Warn("request failed", "request_id", rid, "endpoint", endpoint, "attempts", n, "error", failure.Error())
			return nil, failure
		}

		delay := c.backoff.Delay(attempt)
		c.logger.Debug("scheduling retry", "request_id", rid, "attempt", n+1, "backoff", delay, "endpoint", endpoint)
		if err := sleep(ctx, delay); err != nil {
			c.metrics.RecordError(ErrorTypeCanceled, endpoint)
			return nil, newErr(ErrorTypeCanceled, "request canceled during backoff", err, n)
		}
	}
}

// errBodyTooLarge marks a response read past maxBodyBytes.
var errBodyTooLarge = errors.New("response body too large")

// attempt runs one try under its own timeout. timedOut is set only when the
// per-attempt deadline fired while the caller's context was still live.
func (c *Client) attempt(ctx context.Context, req Request) (resp *http.Response, body []byte, timedOut bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method(), req.URL, reader)
	if err != nil {
		return nil, nil, false, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err = c.executeMiddleware(httpReq)
	if err == nil {
		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
		_ = resp.Body.Close()
		if err == nil && int64(len(body)) > c.maxBodyBytes {
			return nil, nil, false, errBodyTooLarge
		}
		if err != nil {
			resp = nil
		}
	}
	if err != nil {
		timedOut = ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		return nil, nil, timedOut, err
	}
	return resp, body, false, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}
	return current.RoundTrip(req)
}

func (c *Client) recordFailure() {
	if c.circuitBreaker == nil {
		return
	}
	c.circuitBreaker.RecordFailure()
	c.metrics.RecordCircuitBreakerState(c.circuitBreaker.Name(), c.circuitBreaker.State().String())
}

func (c *Client) recordSuccess() {
	if c.circuitBreaker == nil {
		return
	}
	c.circuitBreaker.RecordSuccess()
	c.metrics.RecordCircuitBreakerState(c.circuitBreaker.Name(), c.circuitBreaker.State().String())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r Request) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	raw := r.URL
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "unknown"
	}
	return raw
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
