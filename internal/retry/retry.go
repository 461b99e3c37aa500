package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds one remote operation. Timeout applies to each attempt;
// MaxRetries of zero means a single attempt.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	// Permanent, when set, stops retrying for errors it reports true on.
	Permanent func(error) bool
}

func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		opCtx, cancel := attemptContext(ctx, config.Timeout)
		result, err := operation(opCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Msg("Operation failed")

		if config.Permanent != nil && config.Permanent(err) {
			return zero, err
		}
		if config.MaxRetries == 0 {
			return zero, err
		}

		if attempt < config.MaxRetries {
			delay := calculateBackoffDelay(attempt, config.BaseDelay, config.MaxDelay)
			log.Debug().
				Dur("delay", delay).
				Int("next_attempt", attempt+2).
				Msg("Retrying after delay")

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
	}
	return zero, fmt.Errorf("unexpected: exceeded retry loop")
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func calculateBackoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	// Cap attempt at 30 to prevent overflow (2^30 is safe for int)
	safeAttempt := min(attempt, 30)
	multiplier := 1 << safeAttempt
	delay := time.Duration(multiplier) * baseDelay

	if delay > maxDelay {
		delay = maxDelay
	}

	// jitter between 0.5x and 1.5x
	jitter := 0.5 + rand.Float64()
	delay = time.Duration(float64(delay) * jitter)

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
