package pipeline

import (
	"context"
	"log"
	"time"

	"orders-pipeline/internal/config"
)

// RetryPolicy retries a whole stage call with exponential backoff. It lives
// in the driver, wrapped around the stage, so stage logic itself stays
// deterministic and independently testable.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Backoff      float64
	Retryable    func(error) bool
}

// NewRetryPolicy builds a policy from configuration with the default
// retryable-error predicate.
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		Backoff:      cfg.Backoff,
		Retryable:    DefaultRetryable,
	}
}

// Do runs fn up to MaxAttempts times, backing off between attempts. A
// non-retryable error or a cancelled context ends the attempts immediately.
func (p RetryPolicy) Do(ctx context.Context, name string, logger *log.Logger, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || attempt == attempts {
			return err
		}
		logger.Printf("%s failed (attempt %d/%d): %v, retrying in %s", name, attempt, attempts, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.Backoff)
	}
	return err
}
