package fetch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/backoff"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
)

// Option represents a configuration option
type Option func(*Client)

// WithMaxAttempts sets the total number of tries, the first one included.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithBaseDelay sets the delay unit the backoff strategy scales.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithMaxDelay caps a single backoff wait.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithJitter adds up to f*delay of random extra wait; f is clamped to [0,1].
func WithJitter(f float64) Option {
	return func(c *Client) {
		c.jitter = f
	}
}

func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(c *Client) {
		if s != nil {
			c.strategy = s
		}
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxResponseBytes limits how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBodyBytes = n
	}
}

// ValidateConfiguration checks the options applied to the client.
func (c *Client) ValidateConfiguration() error {
	var errs []string

	if c.maxAttempts < 1 {
		errs = append(errs, "maxAttempts must be at least 1")
	}
	if c.baseDelay < 0 {
		errs = append(errs, "baseDelay must be non-negative")
	}
	if c.maxDelay > 0 && c.maxDelay < c.baseDelay {
		errs = append(errs, "maxDelay must be greater than or equal to baseDelay")
	}
	if c.jitter < 0 || c.jitter > 1 {
		errs = append(errs, "jitter must be between 0 and 1")
	}
	if c.timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.retryCondition == nil {
		errs = append(errs, "retryCondition must not be nil")
	}
	if c.httpClient == nil {
		errs = append(errs, "httpClient must not be nil")
	}
	if c.maxBodyBytes <= 0 {
		errs = append(errs, "maxResponseBytes must be positive")
	}
	for i, m := range c.middleware {
		if m == nil {
			errs = append(errs, fmt.Sprintf("middleware at index %d is nil", i))
		}
	}

	if len(errs) > 0 {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}
	return nil
}
