package pool

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Go after Close.
var ErrClosed = errors.New("worker pool is closed")

// Pool runs blocking network work on a bounded number of goroutines.
type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool running at most workers tasks at once.
func New(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   int64(workers),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules task without blocking the caller. The task waits for a free
// worker and is skipped if ctx is cancelled first. Its context is cancelled
// when either ctx or the pool is done.
func (p *Pool) Go(ctx context.Context, task func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		taskCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(p.ctx, cancel)
		defer stop()

		if err := p.sem.Acquire(taskCtx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		if taskCtx.Err() != nil {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("worker task panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()

		task(taskCtx)
	}()
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return int(p.size)
}

// Close cancels running tasks and waits for them to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
