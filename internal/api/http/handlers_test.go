package http

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/shared/id"
)

type staticResolver map[string]string

func (r staticResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	ip, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return []netip.Addr{netip.MustParseAddr(ip)}, nil
}

var upgrader = gorilla.Upgrader{}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type env struct {
	manager *computer.Manager
	metrics *monitoring.Metrics
	router  *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := upstream(t)

	m, err := computer.NewManager(config.Default().Network, computer.Deps{
		Resolver: staticResolver{"example.com": "93.184.216.34"},
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	metrics := monitoring.NewMetrics()
	t.Cleanup(metrics.Close)

	h := NewHandlers(m, metrics, nil)
	agg := NewMetricsAggregator(metrics, m)

	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics/json", agg.GetAggregatedMetrics)
	r.GET("/computers", h.ListComputers)
	r.POST("/computers", h.CreateComputer)
	r.GET("/computers/:id", h.GetComputer)
	r.DELETE("/computers/:id", h.DeleteComputer)
	r.POST("/computers/:id/http/request", h.Request)
	r.POST("/computers/:id/http/check", h.CheckURL)
	r.POST("/computers/:id/websocket", h.Websocket)
	r.POST("/computers/:id/websocket/:handle/send", h.Send)
	r.GET("/computers/:id/websocket/:handle/receive", h.Receive)
	r.POST("/computers/:id/websocket/:handle/close", h.CloseWebsocket)

	return &env{manager: m, metrics: metrics, router: r}
}

func (e *env) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (e *env) create(t *testing.T) *computer.Computer {
	t.Helper()
	code, out := e.do(t, "POST", "/computers", `{"label":"test"}`)
	require.Equal(t, http.StatusCreated, code)
	info := out["computer"].(map[string]any)
	cid, err := id.ParseComputerID(info["id"].(string))
	require.NoError(t, err)
	c, ok := e.manager.Get(cid)
	require.True(t, ok)
	return c
}

func pull(t *testing.T, c *event.Cursor, name string) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := c.Pull(ctx, name)
	require.NoError(t, err)
	return ev
}

func TestRootAndHealth(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, "GET", "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "netsandbox", out["service"])

	e.create(t)
	code, out = e.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, float64(1), out["computers"])
}

func TestComputerLifecycle(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	path := "/computers/" + c.ID.String()

	code, out := e.do(t, "GET", "/computers", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["count"])

	code, out = e.do(t, "GET", path, "")
	assert.Equal(t, http.StatusOK, code)
	info := out["computer"].(map[string]any)
	assert.Equal(t, "test", info["label"])
	assert.Contains(t, info, "resources")

	code, _ = e.do(t, "DELETE", path, "")
	assert.Equal(t, http.StatusOK, code)

	code, out = e.do(t, "GET", path, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, out["success"])

	code, _ = e.do(t, "GET", "/computers/bogus", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateComputerWithoutBody(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, "POST", "/computers", "")
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 1, e.manager.Count())
}

func TestRequestQueuesEvent(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	cursor := c.Bridge.Cursor()

	code, out := e.do(t, "POST", "/computers/"+c.ID.String()+"/http/request",
		`{"url":"http://example.com/","headers":{"X-Test":"1"}}`)
	require.Equal(t, http.StatusAccepted, code, out)
	assert.Equal(t, "http://example.com/", out["url"])
	assert.NotEmpty(t, out["request_id"])

	ev := pull(t, cursor, "")
	assert.Equal(t, event.HTTPSuccess, ev.Name)
	assert.Equal(t, "http://example.com/", ev.Address())
}

func TestRequestRejections(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	path := "/computers/" + c.ID.String() + "/http/request"

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"unsupported method", `{"url":"http://example.com/","method":"BREW"}`, http.StatusBadRequest, neterr.MsgUnsupportedMethod},
		{"bad base64", `{"url":"http://example.com/","body_base64":"!!"}`, http.StatusBadRequest, ""},
		{"bad json", `{"url":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := e.do(t, "POST", path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, false, out["success"])
			if tt.message != "" {
				assert.Equal(t, tt.message, out["error"])
			}
		})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.Rejections.WithLabelValues("request", "validation")))
}

func TestCheckURL(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	cursor := c.Bridge.Cursor()

	code, _ := e.do(t, "POST", "/computers/"+c.ID.String()+"/http/check", `{"url":"http://example.com/"}`)
	require.Equal(t, http.StatusAccepted, code)

	ev := pull(t, cursor, event.HTTPCheck)
	assert.Equal(t, []any{"http://example.com/", true}, ev.Args)
}

func TestWebsocketSendReceiveClose(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	base := "/computers/" + c.ID.String() + "/websocket"
	cursor := c.Bridge.Cursor()

	code, out := e.do(t, "POST", base, `{"url":"ws://example.com/ws"}`)
	require.Equal(t, http.StatusAccepted, code, out)
	handle := out["handle"].(string)
	require.NotEmpty(t, handle)
	pull(t, cursor, event.WebsocketSuccess)

	code, _ = e.do(t, "POST", base+"/"+handle+"/send", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, code)
	code, out = e.do(t, "GET", base+"/"+handle+"/receive?timeout=5", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hi", out["message"])
	assert.Equal(t, false, out["binary"])

	code, _ = e.do(t, "POST", base+"/"+handle+"/send", `{"message":"AAE=","binary":true}`)
	require.Equal(t, http.StatusOK, code)
	_, out = e.do(t, "GET", base+"/"+handle+"/receive?timeout=5", "")
	assert.Equal(t, "AAE=", out["message"])
	assert.Equal(t, true, out["binary"])

	_, out = e.do(t, "GET", base+"/"+handle+"/receive?timeout=0.1", "")
	assert.Nil(t, out["message"], "timeout yields no message")

	code, _ = e.do(t, "GET", base+"/"+handle+"/receive?timeout=soon", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, "POST", base+"/"+handle+"/close", "")
	require.Equal(t, http.StatusOK, code)
	ev := pull(t, cursor, event.WebsocketClosed)
	assert.Equal(t, []any{"ws://example.com/ws", nil, nil}, ev.Args)

	code, out = e.do(t, "POST", base+"/"+handle+"/send", `{"message":"late"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, neterr.MsgClosedHandle, out["error"])
}

func TestWebsocketRejections(t *testing.T) {
	e := newEnv(t)
	c := e.create(t)
	base := "/computers/" + c.ID.String() + "/websocket"

	code, out := e.do(t, "POST", base, `{"url":"ftp://example.com/"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid scheme 'ftp'", out["error"])

	code, out = e.do(t, "POST", base+"/nope/send", `{"message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, neterr.MsgClosedHandle, out["error"])

	code, _ = e.do(t, "POST", base+"/nope/close", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{neterr.ErrURLMalformed, http.StatusBadRequest},
		{neterr.ErrTooManyRequests, http.StatusTooManyRequests},
		{neterr.Transport(neterr.MsgCouldNotConnect, nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAggregatedMetrics(t *testing.T) {
	e := newEnv(t)
	e.create(t)

	code, out := e.do(t, "GET", "/metrics/json", "")
	require.Equal(t, http.StatusOK, code)

	summary := out["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["active_computers"])

	resources := out["resources"].([]any)
	kinds := make([]string, 0, len(resources))
	for _, r := range resources {
		kinds = append(kinds, r.(map[string]any)["kind"].(string))
	}
	assert.ElementsMatch(t, []string{"http", "check", "websocket"}, kinds)
}
