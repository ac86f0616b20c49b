package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetryTransientOnly(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(3, 100*time.Millisecond, time.Second)

	serverErr := NewFetchError("https://example.com", 503, fmt.Errorf("unavailable"))
	notFound := NewFetchError("https://example.com", 404, fmt.Errorf("not found"))
	rateLimited := NewFetchError("https://example.com", 429, fmt.Errorf("slow down"))

	assert.True(t, policy.ShouldRetry(serverErr, 0))
	assert.True(t, policy.ShouldRetry(rateLimited, 1))
	assert.False(t, policy.ShouldRetry(notFound, 0))
	assert.False(t, policy.ShouldRetry(nil, 0))
}

func TestShouldRetryRespectsMaxRetries(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(2, 100*time.Millisecond, time.Second)
	err := NewFetchError("https://example.com", 500, fmt.Errorf("boom"))

	assert.True(t, policy.ShouldRetry(err, 0))
	assert.True(t, policy.ShouldRetry(err, 1))
	assert.False(t, policy.ShouldRetry(err, 2))
	assert.False(t, policy.ShouldRetry(err, 7))
}

func TestShouldRetryNeverOnCancellation(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(3, 100*time.Millisecond, time.Second)

	assert.False(t, policy.ShouldRetry(context.Canceled, 0))
	assert.False(t, policy.ShouldRetry(context.DeadlineExceeded, 0))
	assert.False(t, policy.ShouldRetry(fmt.Errorf("wrapped: %w", context.Canceled), 0))
}

func TestBackoffGrowsAndStaysBounded(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := 2 * time.Second
	policy := NewExponentialRetryPolicy(5, base, max)

	for attempt := 0; attempt < 8; attempt++ {
		d := policy.Backoff(attempt)
		expected := float64(base) * float64(int(1)<<attempt)
		if expected > float64(max) {
			expected = float64(max)
		}
		// Jitter keeps the delay within [expected/2, expected).
		assert.GreaterOrEqual(t, d, time.Duration(expected/2), "attempt %d", attempt)
		assert.Less(t, d, time.Duration(expected)+time.Millisecond, "attempt %d", attempt)
	}
}

func TestTimerSleeperHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerSleeper{}.Sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
