// internal/quote/debounce.go
package quote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounceDelay is the quiescent period before a network quote fires.
const DefaultDebounceDelay = 400 * time.Millisecond

// Debouncer coalesces rapid quote requests: only the most recent request
// after a quiescent period runs, and a superseded run's result is dropped
// through its abort flag. Most-recent-request-wins, not last-writer-wins.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	current *atomic.Bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{delay: delay}
}

// Schedule arms the debounce window for fn, superseding any pending or
// in-flight run. fn receives an abort flag it must consult before applying
// its result: a newer request flips the flag, and the stale result must be
// discarded even if its network call completed.
func (d *Debouncer) Schedule(fn func(aborted *atomic.Bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	if d.current != nil {
		d.current.Store(true)
	}

	flag := &atomic.Bool{}
	d.current = flag
	d.timer = time.AfterFunc(d.delay, func() {
		fn(flag)
	})
}

// Stop cancels any pending run and aborts the in-flight one.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.current != nil {
		d.current.Store(true)
		d.current = nil
	}
}

// QuoteDebounced serves an immediate optimistic cache quote through apply
// when one exists, then schedules the full network quote behind the
// debounce window. Superseded network results never reach apply.
func (e *Engine) QuoteDebounced(d *Debouncer, params Params, preferred string, apply func(*Result, error)) {
	if local, ok := e.GetLocalSwapQuote(params); ok {
		apply(local, nil)
	}

	d.Schedule(func(aborted *atomic.Bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := e.GetSwapQuote(ctx, params, preferred)
		if aborted.Load() {
			e.logger.Debug("discarding superseded quote",
				zap.String("token_mint", params.TokenMint.String()))
			return
		}
		apply(res, err)
	})
}
