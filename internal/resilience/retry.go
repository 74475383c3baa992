package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// RetryConfig controls the retry combinator. MaxAttempts counts retries
// after the initial invocation, so an operation runs at most
// MaxAttempts+1 times.
type RetryConfig struct {
	MaxAttempts  int            `json:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	BaseDelay    types.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay     types.Duration `json:"max_delay" yaml:"max_delay"`
	JitterFactor float64        `json:"jitter_factor" yaml:"jitter_factor" validate:"gte=0,lte=1"`
	Exponential  bool           `json:"exponential" yaml:"exponential"`

	// OnRetry, when set, observes each retry before its backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error) `json:"-" yaml:"-"`
}

// DefaultRetryConfig retries three times with exponential backoff from
// 100ms capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    types.Duration(100 * time.Millisecond),
		MaxDelay:     types.Duration(5 * time.Second),
		JitterFactor: 0.2,
		Exponential:  true,
	}
}

// Delay returns the backoff before retry attempt k (k >= 1):
// min(max_delay, base * 2^(k-1)) when exponential, base otherwise, plus
// deterministic jitter bounded by jitter_factor * delay. The jitter is a
// pure function of the attempt number so schedules are reproducible.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.BaseDelay.Std()
	if c.Exponential {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if c.MaxDelay > 0 && delay >= c.MaxDelay.Std() {
				delay = c.MaxDelay.Std()
				break
			}
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay.Std() {
		delay = c.MaxDelay.Std()
	}
	if c.JitterFactor > 0 {
		// Weyl sequence on the attempt number: spreads jitter across
		// attempts without any randomness.
		frac := float64(uint32(attempt)*2654435761%1000) / 1000.0
		delay += time.Duration(float64(delay) * c.JitterFactor * frac)
	}
	return delay
}

// Retry invokes op until it succeeds, returns a terminal error, or the
// attempt budget is exhausted. Only errors marked retryable are retried;
// everything else short-circuits. Exhaustion fails RETRY_LIMIT_EXCEEDED
// wrapping the last error.
func Retry[T any](ctx context.Context, cfg RetryConfig, op Func[T]) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.Delay(attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, delay, lastErr)
			}
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, types.WrapError(types.CANCELLED, "retry backoff interrupted", ctx.Err())
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return zero, err
		}
	}

	return zero, types.WrapError(types.RETRY_LIMIT_EXCEEDED,
		fmt.Sprintf("retries exhausted after %d attempts", cfg.MaxAttempts+1), lastErr)
}
