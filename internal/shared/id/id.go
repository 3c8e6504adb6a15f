// Package id provides ULID generation for the network sandbox.
//
// IDs are prefixed by kind so that logs stay readable:
//   - cmp_*  computers hosting a sandbox
//   - req_*  HTTP requests
//   - ws_*   websocket connections
//   - chk_*  URL checks
//
// ULIDs sort by creation time, so a listing of computers or a log grep for
// one request reads in order without a separate timestamp.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ComputerID identifies a sandboxed computer
type ComputerID string

// RequestID identifies an outbound HTTP request
type RequestID string

// SocketID identifies an outbound websocket
type SocketID string

// CheckID identifies a URL check
type CheckID string

const (
	ComputerPrefix = "cmp"
	RequestPrefix  = "req"
	SocketPrefix   = "ws"
	CheckPrefix    = "chk"
)

// generator hands out monotonic ULIDs; the entropy reader is not safe for
// concurrent use.
type generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var shared = &generator{entropy: ulid.Monotonic(rand.Reader, 0)}

func (g *generator) next(prefix string) string {
	g.mu.Lock()
	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	return prefix + "_" + u.String()
}

// NewComputerID generates a new computer ID
func NewComputerID() ComputerID {
	return ComputerID(shared.next(ComputerPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(shared.next(RequestPrefix))
}

// NewSocketID generates a new websocket ID
func NewSocketID() SocketID {
	return SocketID(shared.next(SocketPrefix))
}

// NewCheckID generates a new URL check ID
func NewCheckID() CheckID {
	return CheckID(shared.next(CheckPrefix))
}

func (id ComputerID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id SocketID) String() string   { return string(id) }
func (id CheckID) String() string    { return string(id) }

// Created returns the creation time encoded in the ID, to millisecond
// precision. It is the zero time for an ID that does not parse.
func (id ComputerID) Created() time.Time {
	u, err := parsePrefixed(string(id), ComputerPrefix)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}

// ParseComputerID validates a computer ID received from a client.
func ParseComputerID(s string) (ComputerID, error) {
	if _, err := parsePrefixed(s, ComputerPrefix); err != nil {
		return "", err
	}
	return ComputerID(s), nil
}

func parsePrefixed(s, prefix string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("id %q: expected prefix %q", s, prefix)
	}
	u, err := ulid.ParseStrict(rest)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return u, nil
}
