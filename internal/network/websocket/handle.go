package websocket

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/request"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/resource"
)

// Client opens websockets for one computer and tracks their handles.
type Client struct {
	cfg   Config
	group *resource.Group
	arena *resource.Arena[*Websocket]
}

// NewClient creates a client whose sockets are limited by group.
func NewClient(cfg Config, group *resource.Group) *Client {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		cfg:   cfg,
		group: group,
		arena: resource.NewArena[*Websocket](),
	}
}

// Connect validates args, takes a slot and starts the handshake on the
// worker pool. The outcome is reported as websocket_success carrying the
// handle, or websocket_failure.
func (c *Client) Connect(args Args) (*Websocket, error) {
	if c.cfg.Enabled != nil && !c.cfg.Enabled() {
		return nil, neterr.ErrWebsocketsDisabled
	}

	uri, err := ParseURI(args.URL)
	if err != nil {
		return nil, err
	}

	timeout, err := request.ResolveTimeout(args.Timeout)
	if err != nil {
		return nil, err
	}

	res, err := c.group.TryAcquire(context.Background())
	if err != nil {
		return nil, err
	}

	w := newWebsocket(c.cfg, res, args, uri, timeout)
	ref := c.arena.Insert(w)
	w.handle = Handle{ref: ref, client: c}
	w.OnDispose(func() { c.arena.Remove(ref) })

	if err := c.cfg.Pool.Go(res.Context(), w.connect); err != nil {
		w.Close()
		return nil, neterr.Transport(neterr.MsgCouldNotConnect, err)
	}
	return w, nil
}

// Lookup resolves a handle string produced by Handle.String.
func (c *Client) Lookup(s string) (Handle, bool) {
	ref, err := resource.ParseHandle(s)
	if err != nil {
		return Handle{}, false
	}
	if _, ok := c.arena.Get(ref); !ok {
		return Handle{}, false
	}
	return Handle{ref: ref, client: c}, true
}

// Open returns the number of live sockets.
func (c *Client) Open() int {
	return c.arena.Len()
}

// Handle is the script-visible reference to a websocket. A handle outlives
// its socket; once the socket is gone every method reports a closed handle.
type Handle struct {
	ref    resource.Handle
	client *Client
}

// String encodes the handle for transport to scripts.
func (h Handle) String() string {
	return h.ref.String()
}

func (h Handle) socket() (*Websocket, error) {
	if h.client == nil {
		return nil, neterr.ErrClosedHandle
	}
	w, ok := h.client.arena.Get(h.ref)
	if !ok || w.IsClosed() {
		return nil, neterr.ErrClosedHandle
	}
	return w, nil
}

// Send queues a text or binary message. Text is sent as UTF-8 with invalid
// sequences replaced.
func (h Handle) Send(msg []byte, binary bool) error {
	w, err := h.socket()
	if err != nil {
		return err
	}
	return w.send(msg, binary)
}

// Message is a received websocket payload.
type Message struct {
	Text   string
	Data   []byte
	Binary bool
}

// Receive waits on cursor for the next message addressed to this socket.
// A nil timeout waits until a message arrives or the socket closes. It
// returns ok=false when the socket closed or the timeout fired.
func (h Handle) Receive(ctx context.Context, cursor *event.Cursor, timeout *float64) (Message, bool, error) {
	w, err := h.socket()
	if err != nil {
		return Message{}, false, err
	}

	bridge := cursor.Bridge()
	timer := -1
	if timeout != nil {
		timer = bridge.StartTimer(event.Ticks(*timeout))
		defer bridge.CancelTimer(timer)
	}

	address := w.address
	pred := func(e event.Event) bool {
		switch e.Name {
		case event.WebsocketMessage:
			return e.Address() == address
		case event.WebsocketClosed:
			return e.Address() == address && w.IsClosed()
		case event.Timer:
			id, ok := e.TimerID()
			return ok && id == timer
		}
		return false
	}

	e, err := cursor.Await(ctx, pred)
	if err != nil {
		if errors.Is(err, event.ErrClosed) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}

	if e.Name != event.WebsocketMessage {
		return Message{}, false, nil
	}
	binary, _ := e.Arg(2).(bool)
	switch payload := e.Arg(1).(type) {
	case []byte:
		return Message{Data: payload, Binary: binary}, true, nil
	case string:
		return Message{Text: payload, Data: []byte(payload), Binary: binary}, true, nil
	}
	return Message{}, true, nil
}

// Close closes the socket. The first call queues websocket_closed with no
// reason or code; later calls do nothing.
func (h Handle) Close() {
	w, err := h.socket()
	if err != nil {
		return
	}
	w.closeFromScript()
}

// Headers returns the headers sent with the handshake.
func (h Handle) Headers() (http.Header, error) {
	w, err := h.socket()
	if err != nil {
		return nil, err
	}
	return w.headers.Clone(), nil
}

// Shutdown closes every socket without queueing events and refuses new
// ones until Startup.
func (c *Client) Shutdown() {
	c.group.Shutdown()
}

// Startup allows new sockets after a Shutdown.
func (c *Client) Startup() {
	c.group.Startup()
}
