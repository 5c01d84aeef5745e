package runner

import (
	"testing"
	"time"

	"github.com/shaiso/dataflows/internal/domain"
)

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff:        "exponential",
		InitialDelayMs: 1000,
		MaxDelayMs:     10000,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // ограничено max
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, policy)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff:        "fixed",
		InitialDelayMs: 2000,
		MaxDelayMs:     10000,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		if got := calculateBackoff(attempt, policy); got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, got)
		}
	}
}

func TestCalculateBackoff_Defaults(t *testing.T) {
	if got := calculateBackoff(1, nil); got != time.Second {
		t.Errorf("expected 1s for nil policy, got %v", got)
	}

	policy := &domain.RetryPolicy{Backoff: "exponential"}
	if got := calculateBackoff(1, policy); got != time.Second {
		t.Errorf("expected 1s for zero InitialDelayMs, got %v", got)
	}
	if got := calculateBackoff(10, policy); got != 30*time.Second {
		t.Errorf("expected 30s cap for zero MaxDelayMs, got %v", got)
	}
}

func TestMaxAttempts(t *testing.T) {
	tests := []struct {
		policy *domain.RetryPolicy
		want   int
	}{
		{nil, 1},
		{&domain.RetryPolicy{}, 1},
		{&domain.RetryPolicy{MaxAttempts: -2}, 1},
		{&domain.RetryPolicy{MaxAttempts: 4}, 4},
	}

	for _, tt := range tests {
		if got := maxAttempts(tt.policy); got != tt.want {
			t.Errorf("%+v: expected %d, got %d", tt.policy, tt.want, got)
		}
	}
}
