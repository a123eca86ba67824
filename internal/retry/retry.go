// Package retry holds the single backoff policy shared by the RPC client
// and the connection pool.
package retry

import (
	"context"
	"time"
)

// Policy describes bounded exponential backoff.
type Policy struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Factor     float64       `yaml:"factor"`
}

// DefaultPolicy matches the engine defaults: three retries starting at
// 200ms, doubling, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Factor:     2,
	}
}

// Delay returns the backoff before retry attempt n (0-indexed: the delay
// after the first failure is Delay(0)).
func (p Policy) Delay(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= factor
		if p.MaxDelay > 0 && time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn up to MaxRetries+1 times, sleeping the policy delay between
// attempts. It stops early when fn succeeds, when fn reports the error is
// not retryable, or when ctx is done. attempt is 1-indexed for reporting.
func (p Policy) Do(ctx context.Context, fn func(attempt int) (retryable bool, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		retryable, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt > p.MaxRetries {
			return lastErr
		}

		timer := time.NewTimer(p.Delay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
