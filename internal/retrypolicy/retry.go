// internal/retrypolicy/retry.go
package retrypolicy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Options configures the exponential-backoff retry loop. Zero values fall
// back to the defaults.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration

	// OnRetry observes each retry before the wait, with attempt numbered
	// from 1.
	OnRetry func(attempt int, err error)
}

// DefaultOptions is the fixed policy: 3 retries, 1 s base, ×2, 15 s cap.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.Multiplier <= 1 {
		o.Multiplier = d.Multiplier
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	return o
}

// terminalPatterns mark errors that retrying can never fix regardless of the
// attempt count: balance and slippage failures are business outcomes.
var terminalPatterns = []string{
	"slippage",
	"exceededslippage",
	"insufficient balance",
	"insufficient funds",
	"insufficient lamports",
}

// retryablePatterns mark transient infrastructure failures.
var retryablePatterns = []string{
	"blockhash not found",
	"blockhash expired",
	"block height exceeded",
	"not confirmed",
	"unconfirmed",
	"timed out",
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"rate limit",
	"too many requests",
	"429",
	"network",
	"temporarily unavailable",
	"service unavailable",
}

// IsRetryable classifies an error by matching its message, and the messages
// of its unwrapped causes, against the fixed pattern sets. Terminal patterns
// win over retryable ones at any depth.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		for _, p := range terminalPatterns {
			if strings.Contains(msg, p) {
				return false
			}
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		for _, p := range retryablePatterns {
			if strings.Contains(msg, p) {
				return true
			}
		}
	}
	return false
}

// Run attempts fn, retrying on retryable failures with exponential backoff
// until the options are exhausted. Non-retryable failures abort immediately
// and are returned verbatim.
func Run[T any](ctx context.Context, fn func() (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.BaseDelay
	policy.Multiplier = opts.Multiplier
	policy.MaxInterval = opts.MaxDelay
	policy.RandomizationFactor = 0

	attempt := 0
	operation := func() (T, error) {
		v, err := fn()
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, _ time.Duration) {
		attempt++
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(opts.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
}
