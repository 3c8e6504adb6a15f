package dialer

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/rules"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/throttle"
)

// Resolver looks up the addresses of a host.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// DialFunc opens a raw connection, matching net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProxyConfig configures the SOCKS5 proxy used by rules with use_proxy set.
type ProxyConfig struct {
	Address  string
	Username string
	Password string
}

// Config configures a Dialer. Zero values select the system resolver and dialer.
type Config struct {
	Rules       *rules.Rules
	Throttle    *throttle.Throttle
	Resolver    Resolver
	Dial        DialFunc
	Proxy       *ProxyConfig
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// Target is a host that has been resolved and classified. Connections to a
// target always go to Addr, the address the rules were checked against.
type Target struct {
	Host    string
	Addr    netip.AddrPort
	Options rules.Options
}

// ConnOptions tunes a single connection. Zero values disable each feature.
type ConnOptions struct {
	OnRead  throttle.Counter
	OnWrite throttle.Counter
	// IdleTimeout fails a read that waits longer than this for data.
	IdleTimeout time.Duration
}

// Dialer resolves, classifies and connects to outbound hosts.
type Dialer struct {
	rules    *rules.Rules
	throttle *throttle.Throttle
	resolver Resolver
	dial     DialFunc
	proxy    proxy.ContextDialer
	logger   *zap.Logger
}

// New creates a dialer.
func New(cfg Config) (*Dialer, error) {
	d := &Dialer{
		rules:    cfg.Rules,
		throttle: cfg.Throttle,
		resolver: cfg.Resolver,
		dial:     cfg.Dial,
		logger:   cfg.Logger,
	}
	if d.rules == nil {
		return nil, fmt.Errorf("dialer requires address rules")
	}
	if d.throttle == nil {
		d.throttle = throttle.New(0, 0)
	}
	if d.resolver == nil {
		d.resolver = net.DefaultResolver
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if d.dial == nil {
		d.dial = base.DialContext
	}

	if cfg.Proxy != nil && cfg.Proxy.Address != "" {
		var auth *proxy.Auth
		if cfg.Proxy.Username != "" {
			auth = &proxy.Auth{User: cfg.Proxy.Username, Password: cfg.Proxy.Password}
		}
		p, err := proxy.SOCKS5("tcp", cfg.Proxy.Address, auth, forward(d.dial))
		if err != nil {
			return nil, fmt.Errorf("failed to configure proxy: %w", err)
		}
		cd, ok := p.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer does not support contexts")
		}
		d.proxy = cd
	}

	return d, nil
}

// Throttle returns the bandwidth throttle connections are charged to.
func (d *Dialer) Throttle() *throttle.Throttle {
	return d.throttle
}

// Resolve looks up host and classifies the first address against the rules.
// It fails with "Unknown host" or "Domain not permitted".
func (d *Dialer) Resolve(ctx context.Context, host string, port int) (Target, error) {
	addr, err := d.lookup(ctx, host)
	if err != nil {
		return Target{}, err
	}

	ap := netip.AddrPortFrom(addr, uint16(port))
	opts := d.rules.Apply(host, ap)
	if !opts.Allowed() {
		d.logger.Debug("address denied by rules",
			zap.String("host", host),
			zap.String("addr", ap.String()),
		)
		return Target{}, neterr.ErrDomainNotPermitted
	}

	return Target{Host: host, Addr: ap, Options: opts}, nil
}

func (d *Dialer) lookup(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), nil
	}

	addrs, err := d.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		return netip.Addr{}, neterr.Transport(neterr.MsgUnknownHost, err)
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return addrs[0], nil
}

// DialContext connects to the pinned address of t. The connection is
// charged to the throttle until ctx is done.
func (d *Dialer) DialContext(ctx context.Context, t Target, o ConnOptions) (net.Conn, error) {
	return d.connect(ctx, ctx, t, o)
}

// Pinned returns a dial function that ignores the address it is asked for
// and connects to t instead, for use as a transport's DialContext. The
// connection is charged to the throttle until ctx is done.
func (d *Dialer) Pinned(ctx context.Context, t Target, o ConnOptions) DialFunc {
	return func(dialCtx context.Context, _, _ string) (net.Conn, error) {
		dialCtx, cancel := context.WithCancel(dialCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return d.connect(dialCtx, ctx, t, o)
	}
}

func (d *Dialer) connect(dialCtx, lifeCtx context.Context, t Target, o ConnOptions) (net.Conn, error) {
	addr := t.Addr.String()

	if t.Options.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, t.Options.Timeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	if t.Options.UseProxy && d.proxy != nil {
		conn, err = d.proxy.DialContext(dialCtx, "tcp", addr)
	} else {
		conn, err = d.dial(dialCtx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if o.IdleTimeout > 0 {
		conn = &idleConn{Conn: conn, timeout: o.IdleTimeout}
	}
	return d.throttle.Wrap(lifeCtx, conn, o.OnRead, o.OnWrite), nil
}

// idleConn pushes the read deadline forward before every read.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

type forward DialFunc

func (f forward) Dial(network, addr string) (net.Conn, error) {
	return f(context.Background(), network, addr)
}

func (f forward) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}
