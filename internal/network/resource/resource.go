package resource

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Resource is a cancellable unit of in-flight network work. It is closed
// exactly once; the owned handles registered with OnDispose are released in
// reverse order of registration when that happens.
type Resource struct {
	group  *Group
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu      sync.Mutex
	closers []func()
}

// Context is cancelled when the resource closes.
func (r *Resource) Context() context.Context {
	return r.ctx
}

// IsClosed reports whether Close has been called.
func (r *Resource) IsClosed() bool {
	return r.closed.Load()
}

// OnDispose registers fn to run when the resource closes. If it is already
// closed fn runs immediately.
func (r *Resource) OnDispose(fn func()) {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		r.run(fn)
		return
	}
	r.closers = append(r.closers, fn)
	r.mu.Unlock()
}

// Own closes c when the resource closes.
func (r *Resource) Own(c io.Closer) {
	r.OnDispose(func() { _ = c.Close() })
}

// Close closes the resource. Only the first call disposes it and returns true.
func (r *Resource) Close() bool {
	if !r.closed.CompareAndSwap(false, true) {
		return false
	}

	r.cancel()

	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		r.run(closers[i])
	}

	r.group.release(r)
	return true
}

func (r *Resource) run(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.group.logger.Error("resource dispose panicked",
				zap.String("group", r.group.name),
				zap.Any("panic", p),
			)
		}
	}()
	fn()
}
