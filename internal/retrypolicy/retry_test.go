// internal/retrypolicy/retry_test.go
package retrypolicy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"stale blockhash", errors.New("Blockhash not found"), true},
		{"timeout", errors.New("rpc call timed out"), true},
		{"transport", errors.New("read tcp: connection reset by peer"), true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"slippage terminal", errors.New("ExceededSlippage: 0x1774"), false},
		{"balance terminal", errors.New("insufficient funds for transaction"), false},
		{"unknown", errors.New("something else entirely"), false},
		{"wrapped retryable", fmt.Errorf("send: %w", errors.New("i/o timeout")), true},
		{"terminal wins at depth", fmt.Errorf("timeout while checking: %w", errors.New("slippage tolerance exceeded")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	failures := 2
	calls := 0
	var retryAttempts []int

	opts := fastOptions()
	opts.OnRetry = func(attempt int, err error) {
		retryAttempts = append(retryAttempts, attempt)
	}

	got, err := Run(context.Background(), func() (string, error) {
		calls++
		if calls <= failures {
			return "", errors.New("connection refused")
		}
		return "landed", nil
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, "landed", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retryAttempts, "onRetry fires once per retry with increasing attempts")
}

func TestRun_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	terminal := errors.New("insufficient balance for swap")

	_, err := Run(context.Background(), func() (int, error) {
		calls++
		return 0, terminal
	}, fastOptions())

	require.Error(t, err)
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestRun_ExhaustsRetries(t *testing.T) {
	calls := 0
	retries := 0

	opts := fastOptions()
	opts.OnRetry = func(int, error) { retries++ }

	_, err := Run(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("timeout")
	}, opts)

	require.Error(t, err)
	assert.Equal(t, 4, calls, "maxRetries=3 means 4 total attempts")
	assert.Equal(t, 3, retries)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, func() (int, error) {
		return 0, errors.New("timeout")
	}, fastOptions())
	require.Error(t, err)
}
