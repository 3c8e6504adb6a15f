package resource

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Handle is a script-visible reference into an Arena. A handle whose slot
// has been removed stays invalid even after the slot is reused.
type Handle struct {
	Index      uint32
	Generation uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("%d.%d", h.Index, h.Generation)
}

// ParseHandle parses the form produced by Handle.String.
func ParseHandle(s string) (Handle, error) {
	idx, gen, ok := strings.Cut(s, ".")
	if !ok {
		return Handle{}, fmt.Errorf("malformed handle %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Handle{}, fmt.Errorf("malformed handle %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return Handle{}, fmt.Errorf("malformed handle %q: %w", s, err)
	}
	return Handle{Index: uint32(i), Generation: uint32(g)}, nil
}

type slot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// Arena owns values by index and hands out generational handles.
type Arena[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
	count int
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{generation: 1})
	}

	s := &a.slots[idx]
	s.value = v
	s.used = true
	a.count++
	return Handle{Index: idx, Generation: s.generation}
}

// Get returns the value for h, or false if h has been removed.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[h.Index]
	if !s.used || s.generation != h.Generation {
		return zero, false
	}
	return s.value, true
}

// Remove invalidates h and returns the value it referred to.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.used || s.generation != h.Generation {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.used = false
	s.generation++
	a.free = append(a.free, h.Index)
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Values returns a snapshot of live values.
func (a *Arena[T]) Values() []T {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]T, 0, a.count)
	for _, s := range a.slots {
		if s.used {
			out = append(out, s.value)
		}
	}
	return out
}
