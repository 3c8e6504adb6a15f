package request

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/dialer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/pool"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/resource"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/throttle"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

// MaxRedirects is the redirect budget of a request that follows redirects.
const MaxRedirects = 16

// MaxTimeout bounds the timeout a script may ask for.
const MaxTimeout = 60 * time.Second

// DefaultContentType is sent with bodies that do not declare one.
const DefaultContentType = "application/x-www-form-urlencoded; charset=utf-8"

// State is a request's position in its lifecycle.
type State int32

const (
	StateCreated State = iota
	StateValidatingURI
	StateConnecting
	StateSending
	StateAwaitingResponse
	StateRedirecting
	StateBufferingBody
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateValidatingURI:
		return "validating_uri"
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateRedirecting:
		return "redirecting"
	case StateBufferingBody:
		return "buffering_body"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

var methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Args are the script-supplied parameters of a request.
type Args struct {
	URL     string
	Body    []byte
	Headers http.Header
	Binary  bool
	Method  string
	// Redirect defaults to true when nil.
	Redirect *bool
	// Timeout is in seconds. Nil uses the rule timeout.
	Timeout *float64
}

// Config holds the collaborators shared by every request of a computer.
type Config struct {
	Dialer     *dialer.Dialer
	Pool       *pool.Pool
	Bridge     *event.Bridge
	UserAgent  string
	TLS        *tls.Config
	OnUpload   throttle.Counter
	OnDownload throttle.Counter
	Logger     *zap.Logger
}

// Request is one outbound HTTP exchange, including the redirects it follows.
type Request struct {
	*resource.Resource
	cfg    Config
	id     id.RequestID
	logger *zap.Logger

	address   string
	uri       *url.URL
	method    string
	headers   http.Header
	body      []byte
	binary    bool
	redirects int
	timeout   time.Duration

	state atomic.Int32
}

// Start validates args, takes a slot from group and begins the exchange on
// the worker pool. Validation and capacity failures are returned; everything
// after that is reported as exactly one http_success or http_failure event.
func Start(cfg Config, group *resource.Group, args Args) (*Request, error) {
	uri, err := CheckURI(args.URL)
	if err != nil {
		return nil, err
	}

	method, err := resolveMethod(args.Method, args.Body != nil)
	if err != nil {
		return nil, err
	}

	timeout, err := ResolveTimeout(args.Timeout)
	if err != nil {
		return nil, err
	}

	res, err := group.TryAcquire(context.Background())
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reqID := id.NewRequestID()

	r := &Request{
		Resource:  res,
		cfg:       cfg,
		id:        reqID,
		logger:    logger.With(zap.String("request_id", reqID.String()), zap.String("address", args.URL)),
		address:   args.URL,
		uri:       uri,
		method:    method,
		headers:   buildHeaders(args.Headers, args.Body, cfg.UserAgent),
		body:      args.Body,
		binary:    args.Binary,
		redirects: MaxRedirects,
		timeout:   timeout,
	}
	if args.Redirect != nil && !*args.Redirect {
		r.redirects = 0
	}
	r.setState(StateValidatingURI)

	if err := cfg.Pool.Go(res.Context(), r.run); err != nil {
		r.Close()
		return nil, neterr.Transport(neterr.MsgCouldNotConnect, err)
	}
	return r, nil
}

func resolveMethod(method string, hasBody bool) (string, error) {
	if method == "" {
		if hasBody {
			return http.MethodPost, nil
		}
		return http.MethodGet, nil
	}
	m := strings.ToUpper(method)
	if !methods[m] {
		return "", neterr.ErrUnsupportedMethod
	}
	return m, nil
}

// ResolveTimeout converts a script timeout in seconds, rejecting values
// outside [0, MaxTimeout]. Nil means no override.
func ResolveTimeout(seconds *float64) (time.Duration, error) {
	if seconds == nil {
		return 0, nil
	}
	s := *seconds
	if math.IsNaN(s) || s < 0 || s > MaxTimeout.Seconds() {
		return 0, neterr.ErrTimeoutOutOfRange
	}
	return time.Duration(s * float64(time.Second)), nil
}

func buildHeaders(user http.Header, body []byte, userAgent string) http.Header {
	h := make(http.Header, len(user)+5)
	for name, values := range user {
		for _, v := range values {
			h.Add(name, v)
		}
	}

	if h.Get("User-Agent") == "" && userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if h.Get("Accept-Charset") == "" {
		h.Set("Accept-Charset", "UTF-8")
	}
	if body != nil {
		if h.Get("Content-Type") == "" {
			h.Set("Content-Type", DefaultContentType)
		}
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	h.Set("Connection", "close")
	return h
}

// headerSize approximates the wire size of h for upload quotas.
func headerSize(h http.Header) int64 {
	var n int64
	for name, values := range h {
		for _, v := range values {
			n += int64(len(name) + len(v) + 1)
		}
	}
	return n
}

// ID returns the request id used in logs.
func (r *Request) ID() id.RequestID {
	return r.id
}

// Address returns the address the script asked for.
func (r *Request) Address() string {
	return r.address
}

// State returns the current lifecycle state.
func (r *Request) State() State {
	return State(r.state.Load())
}

func (r *Request) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Request) run(ctx context.Context) {
	defer r.recoverTask()

	uri, method, body := r.uri, r.method, r.body

	for {
		if r.IsClosed() {
			return
		}

		r.setState(StateConnecting)
		target, err := r.cfg.Dialer.Resolve(ctx, uri.Hostname(), Port(uri))
		if err != nil {
			r.fail(err)
			return
		}

		if limit := target.Options.MaxUpload; limit > 0 && headerSize(r.headers)+int64(len(body)) > limit {
			r.fail(neterr.ErrBodyTooLarge)
			return
		}

		resp, err := r.exchange(ctx, target, method, uri, body)
		if err != nil {
			r.fail(err)
			return
		}

		if next, ok := r.redirectTarget(resp, uri); ok {
			drain(resp.Body)

			checked, err := CheckURI(next.String())
			if err != nil {
				r.fail(err)
				return
			}

			r.redirects--
			if resp.StatusCode == http.StatusSeeOther {
				method, body = http.MethodGet, nil
				r.headers.Del("Content-Type")
				r.headers.Del("Content-Length")
			}
			r.logger.Debug("following redirect",
				zap.Int("status", resp.StatusCode),
				zap.String("location", checked.String()),
				zap.Int("remaining", r.redirects),
			)
			uri = checked
			r.setState(StateRedirecting)
			continue
		}

		r.complete(resp, target)
		return
	}
}

// exchange sends one hop over a connection pinned to target.
func (r *Request) exchange(ctx context.Context, target dialer.Target, method string, uri *url.URL, body []byte) (*http.Response, error) {
	timeout := target.Options.Timeout
	if r.timeout > 0 && (timeout <= 0 || r.timeout < timeout) {
		timeout = r.timeout
	}
	target.Options.Timeout = timeout

	transport := &http.Transport{
		DialContext: r.cfg.Dialer.Pinned(ctx, target, dialer.ConnOptions{
			OnRead:      r.cfg.OnDownload,
			OnWrite:     r.cfg.OnUpload,
			IdleTimeout: timeout,
		}),
		TLSClientConfig:       r.cfg.TLS,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
		DisableCompression:    true,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	client := resty.NewWithClient(&http.Client{Transport: transport}).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetRetryCount(0).
		SetDoNotParseResponse(true).
		SetLogger(r.logger.Sugar())

	req := client.R().SetContext(ctx)
	req.Header = r.headers.Clone()
	if body != nil {
		req.SetBody(body)
	}

	r.setState(StateSending)
	resp, err := req.Execute(method, uri.String())
	if err != nil {
		return nil, err
	}
	r.setState(StateAwaitingResponse)
	return resp.RawResponse, nil
}

// redirectTarget returns where resp redirects to, if it should be followed.
func (r *Request) redirectTarget(resp *http.Response, current *url.URL) (*url.URL, bool) {
	if r.redirects <= 0 || !isRedirect(resp.StatusCode) {
		return nil, false
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, false
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, false
	}
	next := current.ResolveReference(ref)
	if next.String() == current.String() {
		return nil, false
	}
	return next, true
}

func isRedirect(code int) bool {
	return code >= 300 && code <= 307 && code != http.StatusNotModified && code != 306
}

// complete buffers the body of a terminal response and reports it.
func (r *Request) complete(resp *http.Response, target dialer.Target) {
	defer resp.Body.Close()
	r.setState(StateBufferingBody)

	limit := target.Options.MaxDownload
	encoding := resp.Header.Get("Content-Encoding")
	if limit > 0 && encoding == "" && resp.ContentLength > limit {
		r.fail(neterr.ErrResponseTooLarge)
		return
	}

	reader, decoded, err := decodeContent(encoding, resp.Body)
	if err != nil {
		r.fail(err)
		return
	}
	defer reader.Close()
	if decoded {
		resp.Header.Del("Content-Encoding")
	}

	body, err := readLimited(reader, limit)
	if err != nil {
		r.fail(err)
		return
	}

	handle := newResponse(resp, body, r.binary)
	r.setState(StateComplete)
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		r.finish(event.HTTPSuccess, r.address, handle)
	} else {
		r.finish(event.HTTPFailure, r.address, handle.StatusText(), handle)
	}
}

// readLimited reads all of body, failing as soon as more than limit bytes arrive.
func readLimited(body io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if int64(len(data)) > limit {
		return nil, neterr.ErrResponseTooLarge
	}
	return data, err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

func (r *Request) fail(err error) {
	if r.IsClosed() {
		return
	}
	msg := neterr.Message(err)
	if errors.Is(err, context.Canceled) {
		msg = neterr.MsgCouldNotConnect
	}
	r.logger.Debug("request failed", zap.String("message", msg), zap.Error(err))
	r.setState(StateComplete)
	r.finish(event.HTTPFailure, r.address, msg)
}

// recoverTask turns a panic in the exchange into an http_failure.
func (r *Request) recoverTask() {
	p := recover()
	if p == nil {
		return
	}
	r.logger.Error("request task panicked", zap.Any("panic", p), zap.Stack("stack"))
	r.fail(neterr.Panic(p))
}

// finish queues the terminal event if this call is the one that closes the request.
func (r *Request) finish(name string, args ...any) {
	if r.Close() {
		r.cfg.Bridge.QueueEvent(name, args...)
	}
}
