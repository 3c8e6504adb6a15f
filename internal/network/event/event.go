package event

import (
	"math"
	"time"
)

// Event names delivered to scripts.
const (
	HTTPSuccess      = "http_success"
	HTTPFailure      = "http_failure"
	HTTPCheck        = "http_check"
	WebsocketSuccess = "websocket_success"
	WebsocketFailure = "websocket_failure"
	WebsocketMessage = "websocket_message"
	WebsocketClosed  = "websocket_closed"
	Timer            = "timer"
)

// TickDuration is the scheduler tick timers are rounded up to.
const TickDuration = 50 * time.Millisecond

// Event is a named, payload-bearing notification for the scheduler.
type Event struct {
	Seq  uint64
	Name string
	Args []any
}

// New creates an event.
func New(name string, args ...any) Event {
	return Event{Name: name, Args: args}
}

// Arg returns the i-th argument or nil.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Address returns the first argument when it is a string.
func (e Event) Address() string {
	s, _ := e.Arg(0).(string)
	return s
}

// TimerID returns the id of a timer event.
func (e Event) TimerID() (int, bool) {
	if e.Name != Timer {
		return 0, false
	}
	id, ok := e.Arg(0).(int)
	return id, ok
}

// Predicate selects the events a waiter is interested in.
type Predicate func(Event) bool

// Any matches every event.
func Any(Event) bool { return true }

// Named matches events with the given name. An empty name matches everything.
func Named(name string) Predicate {
	if name == "" {
		return Any
	}
	return func(e Event) bool { return e.Name == name }
}

// TimerFired matches the timer event with the given id.
func TimerFired(id int) Predicate {
	return func(e Event) bool {
		got, ok := e.TimerID()
		return ok && got == id
	}
}

// Or matches events accepted by any of preds.
func Or(preds ...Predicate) Predicate {
	return func(e Event) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// Ticks converts seconds to a duration rounded up to whole scheduler ticks.
func Ticks(seconds float64) time.Duration {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	ticks := math.Ceil(seconds / TickDuration.Seconds())
	return time.Duration(ticks) * TickDuration
}
