package backoff

import (
	"testing"
	"time"
)

func TestExponentialStrategy(t *testing.T) {
	strategy := ExponentialStrategy{}

	tests := []struct {
		name     string
		attempt  int
		base     time.Duration
		max      time.Duration
		expected time.Duration
	}{
		{"attempt 0", 0, time.Second, 0, time.Second},
		{"attempt 1", 1, time.Second, 0, 2 * time.Second},
		{"attempt 2", 2, time.Second, 0, 4 * time.Second},
		{"negative attempt", -3, time.Second, 0, time.Second},
		{"capped", 5, time.Second, 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Calculate(tt.attempt, tt.base, tt.max, 0)
			if result != tt.expected {
				t.Errorf("Calculate(%d, %v, %v) = %v, want %v", tt.attempt, tt.base, tt.max, result, tt.expected)
			}
		})
	}
}

func TestLinearStrategy(t *testing.T) {
	strategy := LinearStrategy{}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"attempt 0", 0, time.Second},
		{"attempt 1", 1, 2 * time.Second},
		{"attempt 2", 2, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Calculate(tt.attempt, time.Second, 0, 0)
			if result != tt.expected {
				t.Errorf("Calculate(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	strategy := ExponentialStrategy{}
	for i := 0; i < 100; i++ {
		d := strategy.Calculate(1, 100*time.Millisecond, time.Second, 0.5)
		if d < 200*time.Millisecond || d > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [200ms, 300ms]", d)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "exponential", false},
		{"Exponential", "exponential", false},
		{" linear ", "linear", false},
		{"fibonacci", "", true},
	}
	for _, tt := range tests {
		s, err := ParseStrategy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStrategy(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStrategy(%q) unexpected error: %v", tt.in, err)
		}
		if s.Name() != tt.want {
			t.Errorf("ParseStrategy(%q) = %s, want %s", tt.in, s.Name(), tt.want)
		}
	}
}

func TestClampJitter(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.5, 0.0},
		{0.0, 0.0},
		{0.5, 0.5},
		{1.0, 1.0},
		{1.5, 1.0},
	}

	for _, tt := range tests {
		result := clampJitter(tt.input)
		if result != tt.expected {
			t.Errorf("clampJitter(%f) = %f, want %f", tt.input, result, tt.expected)
		}
	}
}

func BenchmarkExponentialStrategy(b *testing.B) {
	strategy := ExponentialStrategy{}
	for i := 0; i < b.N; i++ {
		strategy.Calculate(i%10, 100*time.Millisecond, 5*time.Second, 0.1)
	}
}
