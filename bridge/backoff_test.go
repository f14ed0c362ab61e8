package bridge

import (
	"testing"
	"time"
)

func TestFixedRetryAlwaysSameDelay(t *testing.T) {
	r := FixedRetry{Delay: 50 * time.Millisecond}
	if r.NextDelay(1) != 50*time.Millisecond || r.NextDelay(40) != 50*time.Millisecond {
		t.Fatalf("FixedRetry must ignore attempt number")
	}
}

func TestLinearRetryGrowsAndCaps(t *testing.T) {
	r := LinearRetry{Base: time.Second, Step: time.Second, Max: 3 * time.Second}
	if r.NextDelay(0) != time.Second {
		t.Fatalf("expected base delay at attempt 0, got %s", r.NextDelay(0))
	}
	if r.NextDelay(5) != 3*time.Second {
		t.Fatalf("expected delay capped at Max, got %s", r.NextDelay(5))
	}
}

func TestExponentialRetryStaysWithinBounds(t *testing.T) {
	r := ExponentialRetry{Base: 10 * time.Millisecond, Max: time.Second}
	for attempt := 1; attempt <= 30; attempt++ {
		d := r.NextDelay(attempt)
		if d < 0 || d > time.Second {
			t.Fatalf("attempt %d: delay %s out of bounds", attempt, d)
		}
	}
}

func TestExponentialRetryUsesDefaultsWhenZero(t *testing.T) {
	r := ExponentialRetry{}
	d := r.NextDelay(1)
	if d < 0 || d > 10*time.Second {
		t.Fatalf("expected a bounded default delay, got %s", d)
	}
}
