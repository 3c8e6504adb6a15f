package api

import (
	"context"
	"crypto/tls"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/dialer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/pool"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/request"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/resource"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/throttle"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/websocket"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

// MaxChecks caps concurrent checkURL calls per computer.
const MaxChecks = 512

// Config wires a computer's HTTP API to the shared network stack.
type Config struct {
	Dialer    *dialer.Dialer
	Pool      *pool.Pool
	Bridge    *event.Bridge
	TLS       *tls.Config
	UserAgent string

	// Limits are read on every acquire, so they track configuration reloads.
	MaxRequests   func() int
	MaxWebsockets func() int

	HTTPEnabled      func() bool
	WebsocketEnabled func() bool

	OnUpload   throttle.Counter
	OnDownload throttle.Counter
	Logger     *zap.Logger
}

// HTTP is the network API of one computer: requests, URL checks and
// websockets, each limited by its own resource group.
type HTTP struct {
	cfg    Config
	logger *zap.Logger

	requests   *resource.Group
	checks     *resource.Group
	websockets *resource.Group
	sockets    *websocket.Client
	requestCfg request.Config
}

// Stats counts the live resources of each kind.
type Stats struct {
	Requests   int `json:"requests"`
	Checks     int `json:"checks"`
	Websockets int `json:"websockets"`
}

// New creates the API. Dialer, Pool and Bridge are required.
func New(cfg Config) (*HTTP, error) {
	if cfg.Dialer == nil || cfg.Pool == nil || cfg.Bridge == nil {
		return nil, errors.New("api: dialer, pool and bridge are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &HTTP{
		cfg:        cfg,
		logger:     cfg.Logger,
		requests:   resource.NewGroup("http", cfg.MaxRequests, neterr.ErrTooManyRequests, cfg.Logger),
		checks:     resource.NewGroup("check", resource.Fixed(MaxChecks), neterr.ErrTooManyChecks, cfg.Logger),
		websockets: resource.NewGroup("websocket", cfg.MaxWebsockets, neterr.ErrTooManyWebsockets, cfg.Logger),
		requestCfg: request.Config{
			Dialer:     cfg.Dialer,
			Pool:       cfg.Pool,
			Bridge:     cfg.Bridge,
			UserAgent:  cfg.UserAgent,
			TLS:        cfg.TLS,
			OnUpload:   cfg.OnUpload,
			OnDownload: cfg.OnDownload,
			Logger:     cfg.Logger,
		},
	}
	h.sockets = websocket.NewClient(websocket.Config{
		Dialer:     cfg.Dialer,
		Pool:       cfg.Pool,
		Bridge:     cfg.Bridge,
		TLS:        cfg.TLS,
		UserAgent:  cfg.UserAgent,
		Enabled:    cfg.WebsocketEnabled,
		OnUpload:   cfg.OnUpload,
		OnDownload: cfg.OnDownload,
		Logger:     cfg.Logger,
	}, h.websockets)
	return h, nil
}

func (h *HTTP) enabled() error {
	if h.cfg.HTTPEnabled != nil && !h.cfg.HTTPEnabled() {
		return neterr.ErrHTTPDisabled
	}
	return nil
}

// Request starts an HTTP request. The result arrives as http_success or
// http_failure.
func (h *HTTP) Request(args request.Args) (*request.Request, error) {
	if err := h.enabled(); err != nil {
		return nil, err
	}
	return request.Start(h.requestCfg, h.requests, args)
}

// CheckURL validates address and then checks asynchronously that the rules
// permit it. The result arrives as http_check.
func (h *HTTP) CheckURL(address string) error {
	if err := h.enabled(); err != nil {
		return err
	}

	uri, err := request.CheckURI(address)
	if err != nil {
		return err
	}

	res, err := h.checks.TryAcquire(context.Background())
	if err != nil {
		return err
	}

	checkID := id.NewCheckID()
	logger := h.logger.With(zap.String("check_id", checkID.String()), zap.String("address", address))

	err = h.cfg.Pool.Go(res.Context(), func(ctx context.Context) {
		_, err := h.cfg.Dialer.Resolve(ctx, uri.Hostname(), request.Port(uri))
		if res.IsClosed() {
			return
		}
		if err != nil {
			msg := neterr.Message(err)
			logger.Debug("url check failed", zap.String("message", msg), zap.Error(err))
			if res.Close() {
				h.cfg.Bridge.QueueEvent(event.HTTPCheck, address, false, msg)
			}
			return
		}
		if res.Close() {
			h.cfg.Bridge.QueueEvent(event.HTTPCheck, address, true)
		}
	})
	if err != nil {
		res.Close()
		return neterr.Transport(neterr.MsgCouldNotConnect, err)
	}
	return nil
}

// Websocket opens a websocket. The result arrives as websocket_success or
// websocket_failure.
func (h *HTTP) Websocket(args websocket.Args) (*websocket.Websocket, error) {
	if err := h.enabled(); err != nil {
		return nil, err
	}
	return h.sockets.Connect(args)
}

// Handle resolves a websocket handle string.
func (h *HTTP) Handle(s string) (websocket.Handle, error) {
	handle, ok := h.sockets.Lookup(s)
	if !ok {
		return websocket.Handle{}, neterr.ErrClosedHandle
	}
	return handle, nil
}

// Stats returns the live resource counts.
func (h *HTTP) Stats() Stats {
	return Stats{
		Requests:   h.requests.Live(),
		Checks:     h.checks.Live(),
		Websockets: h.websockets.Live(),
	}
}

// Groups returns the resource groups for metrics.
func (h *HTTP) Groups() []*resource.Group {
	return []*resource.Group{h.requests, h.checks, h.websockets}
}

// Startup allows new resources after a Shutdown.
func (h *HTTP) Startup() {
	h.checks.Startup()
	h.requests.Startup()
	h.sockets.Startup()
}

// Shutdown closes every live resource without queueing events.
func (h *HTTP) Shutdown() {
	h.checks.Shutdown()
	h.requests.Shutdown()
	h.sockets.Shutdown()
	h.logger.Debug("http api shut down")
}
