// internal/workers/pool.go
package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Result is the correlated response for one submitted task.
type Result struct {
	ID    uint64
	Value interface{}
	Err   error
}

type task struct {
	id  uint64
	ctx context.Context
	run func() (interface{}, error)
	out chan Result
}

// Pool executes CPU-bound pure functions off the caller's goroutine and
// returns results over per-task channels correlated by a monotonically
// increasing id. A result whose requester has gone away is simply dropped:
// no cross-task shared mutable state exists inside a worker.
type Pool struct {
	logger *zap.Logger
	size   int

	startOnce sync.Once
	tasks     chan *task
	nextID    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool of size workers. The workers start lazily on the
// first Submit.
func NewPool(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger: logger.Named("workers"),
		size:   size,
		tasks:  make(chan *task, size*4),
		ctx:    ctx,
		cancel: cancel,
	}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool, created lazily on first use.
func Default(logger *zap.Logger) *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(0, logger)
	})
	return defaultPool
}

func (p *Pool) start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.worker(i + 1)
		}
		p.logger.Debug("worker pool started", zap.Int("size", p.size))
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker_id", id))
	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("worker shutting down")
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.handle(t)
		}
	}
}

func (p *Pool) handle(t *task) {
	if t.ctx.Err() != nil {
		// Requester is gone; don't burn CPU on an abandoned task.
		t.out <- Result{ID: t.id, Err: t.ctx.Err()}
		return
	}
	value, err := t.run()
	t.out <- Result{ID: t.id, Value: value, Err: err}
}

// Submit schedules fn on the pool and returns a buffered channel carrying
// exactly one Result. The channel is never closed; abandoning it is safe.
func (p *Pool) Submit(ctx context.Context, fn func() (interface{}, error)) (<-chan Result, uint64) {
	p.start()

	t := &task{
		id:  p.nextID.Add(1),
		ctx: ctx,
		run: fn,
		out: make(chan Result, 1),
	}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		t.out <- Result{ID: t.id, Err: ctx.Err()}
	}
	return t.out, t.id
}

// Close stops the workers. Pending tasks are abandoned.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
