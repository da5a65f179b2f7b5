package fetch

import (
	"context"
	"math"
	"time"
)

// RetryConfig defines the outer retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of extra rounds after the first one.
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig waits 1s, 2s, 4s between rounds.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        4 * time.Second,
	BackoffMultiple: 2.0,
}

// Backoff returns the delay before retry round attempt+1 (attempt is 0-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiple, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
