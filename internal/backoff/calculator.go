package backoff

import (
	"time"
)

// Calculator binds a Strategy to the delay parameters of one client.
type Calculator struct {
	strategy Strategy
	base     time.Duration
	maxDelay time.Duration
	jitter   float64
}

// NewCalculator returns a calculator; a nil strategy means exponential.
// A zero maxDelay leaves delays uncapped.
func NewCalculator(strategy Strategy, base, maxDelay time.Duration, jitter float64) *Calculator {
	if strategy == nil {
		strategy = ExponentialStrategy{}
	}
	return &Calculator{
		strategy: strategy,
		base:     base,
		maxDelay: maxDelay,
		jitter:   jitter,
	}
}

// Delay returns the wait before retry number attempt.
func (c *Calculator) Delay(attempt int) time.Duration {
	return c.strategy.Calculate(attempt, c.base, c.maxDelay, c.jitter)
}
