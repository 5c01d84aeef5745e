package runner

import (
	"time"

	"github.com/shaiso/dataflows/internal/domain"
)

const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// maxAttempts возвращает число попыток для политики (минимум 1).
func maxAttempts(policy *domain.RetryPolicy) int {
	if policy == nil || policy.MaxAttempts < 1 {
		return 1
	}
	return policy.MaxAttempts
}

// calculateBackoff вычисляет задержку перед попыткой attempt+1.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return defaultInitialDelay
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	default:
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
