package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/dialer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/pool"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/request"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/resource"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/throttle"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

const (
	// MaxMessageSize caps inbound messages when no rule sets a limit.
	MaxMessageSize = 1 << 30
	// MaxPendingSends is the number of queued outbound messages per socket.
	MaxPendingSends = 512

	closeTimeout = time.Second
)

// State is a websocket's position in its lifecycle.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateHandshaking
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// reserved headers are set by the handshake itself.
var reserved = []string{
	"Upgrade",
	"Connection",
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
}

// Args are the script-supplied parameters of a connection.
type Args struct {
	URL     string
	Headers http.Header
	// Timeout is the handshake timeout in seconds. Nil uses the rule timeout.
	Timeout *float64
}

// Config holds the collaborators shared by every websocket of a computer.
type Config struct {
	Dialer     *dialer.Dialer
	Pool       *pool.Pool
	Bridge     *event.Bridge
	TLS        *tls.Config
	UserAgent  string
	Enabled    func() bool
	OnUpload   throttle.Counter
	OnDownload throttle.Counter
	Logger     *zap.Logger
}

type frame struct {
	kind int
	data []byte
}

// Websocket is one outbound websocket connection.
type Websocket struct {
	*resource.Resource
	cfg    Config
	id     id.SocketID
	logger *zap.Logger

	address string
	uri     *url.URL
	headers http.Header
	timeout time.Duration
	handle  Handle

	state      atomic.Int32
	maxMessage atomic.Int64

	mu    sync.Mutex
	conn  *websocket.Conn
	sends chan frame

	// events orders queued events against Close, so nothing follows the
	// terminal event of this socket.
	events sync.Mutex
}

func newWebsocket(cfg Config, res *resource.Resource, args Args, uri *url.URL, timeout time.Duration) *Websocket {
	headers := make(http.Header, len(args.Headers))
	for name, values := range args.Headers {
		headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	for _, name := range reserved {
		headers.Del(name)
	}
	if headers.Get("User-Agent") == "" && cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sockID := id.NewSocketID()
	w := &Websocket{
		Resource: res,
		cfg:      cfg,
		id:       sockID,
		logger:   logger.With(zap.String("socket_id", sockID.String()), zap.String("address", args.URL)),
		address:  args.URL,
		uri:      uri,
		headers:  headers,
		timeout:  timeout,
		sends:    make(chan frame, MaxPendingSends),
	}
	w.maxMessage.Store(MaxMessageSize)
	w.OnDispose(func() { w.setState(StateClosed) })
	return w
}

// ID returns the socket id used in logs.
func (w *Websocket) ID() id.SocketID {
	return w.id
}

// Address returns the address the script connected to.
func (w *Websocket) Address() string {
	return w.address
}

// Handle returns the script-visible handle.
func (w *Websocket) Handle() Handle {
	return w.handle
}

// State returns the current lifecycle state.
func (w *Websocket) State() State {
	return State(w.state.Load())
}

func (w *Websocket) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Websocket) connect(ctx context.Context) {
	defer w.recoverTask()

	w.setState(StateConnecting)
	target, err := w.cfg.Dialer.Resolve(ctx, w.uri.Hostname(), request.Port(w.uri))
	if err != nil {
		w.fail(err)
		return
	}

	timeout := target.Options.Timeout
	if w.timeout > 0 && (timeout <= 0 || w.timeout < timeout) {
		timeout = w.timeout
	}
	target.Options.Timeout = timeout
	if limit := target.Options.WebsocketMessage; limit > 0 {
		w.maxMessage.Store(limit)
	}

	d := &websocket.Dialer{
		NetDialContext: w.cfg.Dialer.Pinned(ctx, target, dialer.ConnOptions{
			OnRead:  w.cfg.OnDownload,
			OnWrite: w.cfg.OnUpload,
		}),
		TLSClientConfig:   w.cfg.TLS,
		HandshakeTimeout:  timeout,
		EnableCompression: true,
	}

	w.setState(StateHandshaking)
	conn, resp, err := d.DialContext(ctx, w.uri.String(), w.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		w.fail(err)
		return
	}

	conn.SetReadLimit(w.maxMessage.Load())

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	w.OnDispose(func() {
		w.setState(StateClosing)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		_ = conn.Close()
	})
	w.state.CompareAndSwap(int32(StateHandshaking), int32(StateOpen))
	if !w.queue(event.WebsocketSuccess, w.address, w.handle) {
		return
	}
	w.logger.Debug("websocket open")

	go w.writeLoop(conn)
	w.readLoop(conn)
}

func (w *Websocket) readLoop(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			w.closed(err)
			return
		}

		var queued bool
		if kind == websocket.BinaryMessage {
			queued = w.queue(event.WebsocketMessage, w.address, data, true)
		} else {
			queued = w.queue(event.WebsocketMessage, w.address, string(data), false)
		}
		if !queued {
			return
		}
	}
}

// queue queues an event unless the socket is closed, and reports whether it did.
func (w *Websocket) queue(name string, args ...any) bool {
	w.events.Lock()
	defer w.events.Unlock()
	if w.IsClosed() {
		return false
	}
	w.cfg.Bridge.QueueEvent(name, args...)
	return true
}

// finish closes the socket and, if this call closed it, queues the terminal event.
func (w *Websocket) finish(name string, args ...any) bool {
	w.events.Lock()
	defer w.events.Unlock()
	if !w.Close() {
		return false
	}
	w.cfg.Bridge.QueueEvent(name, args...)
	return true
}

// recoverTask turns a panic in the connection task into a websocket_failure.
func (w *Websocket) recoverTask() {
	p := recover()
	if p == nil {
		return
	}
	w.logger.Error("websocket task panicked", zap.Any("panic", p), zap.Stack("stack"))
	w.fail(neterr.Panic(p))
}

func (w *Websocket) writeLoop(conn *websocket.Conn) {
	done := w.Context().Done()
	for {
		select {
		case <-done:
			return
		case f := <-w.sends:
			if err := conn.WriteMessage(f.kind, f.data); err != nil {
				w.logger.Debug("websocket write failed", zap.Error(err))
				w.closed(err)
				return
			}
		}
	}
}

// closed reports the end of an open connection, unless it was already closed.
func (w *Websocket) closed(err error) {
	var reason, code any

	// gorilla reports a dropped connection as a synthetic 1006 close.
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure:
		if closeErr.Text != "" {
			reason = closeErr.Text
		}
		if closeErr.Code != websocket.CloseNoStatusReceived {
			code = closeErr.Code
		}
	case errors.Is(err, websocket.ErrReadLimit):
		reason = neterr.MsgMessageTooLarge
	default:
		reason = neterr.MsgWebsocketInactive
	}

	if w.finish(event.WebsocketClosed, w.address, reason, code) {
		w.logger.Debug("websocket closed", zap.Any("reason", reason), zap.Any("code", code))
	}
}

func (w *Websocket) fail(err error) {
	if w.IsClosed() {
		return
	}
	msg := neterr.Message(err)
	w.logger.Debug("websocket failed", zap.String("message", msg), zap.Error(err))
	w.finish(event.WebsocketFailure, w.address, msg)
}

// send queues a message for the writer goroutine.
func (w *Websocket) send(msg []byte, binary bool) error {
	if w.IsClosed() {
		return neterr.ErrClosedHandle
	}
	if int64(len(msg)) > w.maxMessage.Load() {
		return neterr.ErrMessageTooLarge
	}

	w.mu.Lock()
	open := w.conn != nil
	w.mu.Unlock()
	if !open {
		return neterr.Transport(neterr.MsgWebsocketInactive, nil)
	}

	f := frame{kind: websocket.BinaryMessage, data: msg}
	if !binary {
		f = frame{kind: websocket.TextMessage, data: []byte(strings.ToValidUTF8(string(msg), "�"))}
	}

	select {
	case w.sends <- f:
		return nil
	default:
		return neterr.ErrTooManyMessages
	}
}

// closeFromScript closes the socket and reports a close with no reason or code.
func (w *Websocket) closeFromScript() {
	w.finish(event.WebsocketClosed, w.address, nil, nil)
}
