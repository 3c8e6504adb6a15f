package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of events retained for lagging cursors.
const DefaultCapacity = 256

// ErrClosed is returned by Await once the bridge is closed and drained.
var ErrClosed = errors.New("event bridge closed")

// Bridge carries asynchronous network completions into a cooperative
// scheduler. Events are appended to a bounded log; each coroutine reads it
// through its own Cursor, so waiters filter independently and never consume
// each other's events.
type Bridge struct {
	logger   *zap.Logger
	observer func(Event)
	onDrop   func(n uint64)
	dropped  atomic.Uint64

	mu     sync.Mutex
	buf    []Event
	next   uint64
	notify chan struct{}
	closed bool

	timers    map[int]*time.Timer
	nextTimer int
}

// NewBridge creates a bridge retaining capacity events.
func NewBridge(capacity int, logger *zap.Logger) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		logger: logger,
		buf:    make([]Event, capacity),
		notify: make(chan struct{}),
		timers: make(map[int]*time.Timer),
	}
}

// WithObserver registers fn to see every queued event.
func (b *Bridge) WithObserver(fn func(Event)) *Bridge {
	b.observer = fn
	return b
}

// WithDropObserver registers fn to see how many events a lagging cursor skipped.
func (b *Bridge) WithDropObserver(fn func(n uint64)) *Bridge {
	b.onDrop = fn
	return b
}

// Dropped returns the number of events cursors skipped because the log
// had already overwritten them.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Queue appends an event and wakes every waiter. It is safe to call from
// any goroutine and returns false once the bridge is closed.
func (b *Bridge) Queue(e Event) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	e.Seq = b.next
	b.buf[b.next%uint64(len(b.buf))] = e
	b.next++
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()

	if b.observer != nil {
		b.observer(e)
	}
	return true
}

// QueueEvent is shorthand for Queue(New(name, args...)).
func (b *Bridge) QueueEvent(name string, args ...any) bool {
	return b.Queue(New(name, args...))
}

// oldest returns the sequence number of the oldest retained event.
func (b *Bridge) oldest() uint64 {
	if n := uint64(len(b.buf)); b.next > n {
		return b.next - n
	}
	return 0
}

// Cursor returns a reader positioned after every event queued so far.
func (b *Bridge) Cursor() *Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Cursor{bridge: b, pos: b.next}
}

// Await blocks until an event after the cursor satisfies pred. Events that
// do not match are skipped for this cursor only.
func (b *Bridge) Await(ctx context.Context, c *Cursor, pred Predicate) (Event, error) {
	for {
		b.mu.Lock()
		if oldest := b.oldest(); c.pos < oldest {
			n := oldest - c.pos
			b.logger.Warn("event cursor fell behind, events dropped",
				zap.Uint64("dropped", n),
			)
			c.pos = oldest
			b.dropped.Add(n)
			if b.onDrop != nil {
				b.onDrop(n)
			}
		}
		for c.pos < b.next {
			e := b.buf[c.pos%uint64(len(b.buf))]
			c.pos++
			if pred(e) {
				b.mu.Unlock()
				return e, nil
			}
		}
		if b.closed {
			b.mu.Unlock()
			return Event{}, ErrClosed
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Pull waits for the next event with the given name, or any event when name is empty.
func (b *Bridge) Pull(ctx context.Context, c *Cursor, name string) (Event, error) {
	return b.Await(ctx, c, Named(name))
}

// StartTimer queues a timer event carrying the returned id after d.
func (b *Bridge) StartTimer(d time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextTimer++
	id := b.nextTimer
	if b.closed {
		return id
	}
	b.timers[id] = time.AfterFunc(d, func() {
		b.mu.Lock()
		_, live := b.timers[id]
		delete(b.timers, id)
		b.mu.Unlock()
		if live {
			b.QueueEvent(Timer, id)
		}
	})
	return id
}

// CancelTimer stops a pending timer. It reports whether the timer was pending.
func (b *Bridge) CancelTimer(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(b.timers, id)
	return true
}

// Close stops every timer and releases waiters once they have drained the log.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	close(b.notify)
}

// Cursor is one coroutine's read position in a Bridge. A cursor must not be
// shared between goroutines that await concurrently.
type Cursor struct {
	bridge *Bridge
	pos    uint64
}

// Await waits on the cursor's bridge.
func (c *Cursor) Await(ctx context.Context, pred Predicate) (Event, error) {
	return c.bridge.Await(ctx, c, pred)
}

// Pull waits on the cursor's bridge for the next event with the given name.
func (c *Cursor) Pull(ctx context.Context, name string) (Event, error) {
	return c.bridge.Pull(ctx, c, name)
}

// Bridge returns the bridge the cursor reads.
func (c *Cursor) Bridge() *Bridge {
	return c.bridge
}
