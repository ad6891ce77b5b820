package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts, < 0 means until the deadline
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)
}

// DefaultConfig returns sensible defaults for retries
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// UntilDeadline retries until ctx is done. Used when waiting for a
// service to come up within a caller-chosen window.
func UntilDeadline() Config {
	return Config{
		MaxRetries:     -1,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// Permanent marks an error that must not be retried
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Do executes fn with exponential backoff retries. onRetry, when not nil,
// is called before each sleep with the attempt number and the last error.
func Do(ctx context.Context, config Config, fn func() error, onRetry ...func(attempt int, err error)) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; config.MaxRetries < 0 || attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return cancelled(ctx, lastErr)
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		lastErr = err

		// Don't sleep after last attempt
		if attempt == config.MaxRetries {
			break
		}

		for _, cb := range onRetry {
			cb(attempt+1, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled(ctx, lastErr)
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

func cancelled(ctx context.Context, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), lastErr)
	}
	return fmt.Errorf("retry cancelled: %w", ctx.Err())
}
