package backoff

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Strategy computes the wait before retry number attempt (0-based: attempt 0
// is the wait after the first failure).
type Strategy interface {
	Calculate(attempt int, base, maxDelay time.Duration, jitter float64) time.Duration
	Name() string
}

// ExponentialStrategy waits base * 2^attempt.
type ExponentialStrategy struct{}

func (ExponentialStrategy) Name() string { return "exponential" }

func (ExponentialStrategy) Calculate(attempt int, base, maxDelay time.Duration, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}
	return applyJitter(time.Duration(float64(base)*pow(2, attempt)), maxDelay, jitter)
}

// LinearStrategy waits base * (attempt+1).
type LinearStrategy struct{}

func (LinearStrategy) Name() string { return "linear" }

func (LinearStrategy) Calculate(attempt int, base, maxDelay time.Duration, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return applyJitter(base*time.Duration(attempt+1), maxDelay, jitter)
}

// ParseStrategy maps a configuration name onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exponential":
		return ExponentialStrategy{}, nil
	case "linear":
		return LinearStrategy{}, nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", name)
	}
}

func applyJitter(delay, maxDelay time.Duration, jitter float64) time.Duration {
	if maxDelay > 0 && (delay < 0 || delay > maxDelay) {
		delay = maxDelay
	}
	jitter = clampJitter(jitter)
	if jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * rand.Float64())
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
	return delay
}

// clampJitter ensures jitter is within [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
