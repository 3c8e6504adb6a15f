package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/logging"
)

type staticResolver map[string]string

func (r staticResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	ip, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return []netip.Addr{netip.MustParseAddr(ip)}, nil
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Logging.Development = true
	for _, fn := range mutate {
		fn(cfg)
	}

	srv, err := NewServerWithDeps(cfg, computer.Deps{
		Resolver: staticResolver{"example.com": "93.184.216.34"},
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, network, upstream.Listener.Addr().String())
		},
	}, logging.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, srv.Close())
	})
	return srv, ts
}

func post(t *testing.T, url, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(data, &out), string(data))
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestEndToEndRequestOverEventStream(t *testing.T) {
	_, ts := newTestServer(t)

	created := post(t, ts.URL+"/computers", `{"label":"e2e"}`)
	cid := created["computer"].(map[string]any)["id"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/computers/" + cid + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	readFrame := func() map[string]any {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var f map[string]any
		require.NoError(t, sonic.Unmarshal(data, &f))
		return f
	}
	assert.Equal(t, "system", readFrame()["type"])

	accepted := post(t, ts.URL+"/computers/"+cid+"/http/request", `{"url":"http://example.com/"}`)
	require.Equal(t, true, accepted["success"], accepted)

	f := readFrame()
	assert.Equal(t, "http_success", f["event"])
	args := f["args"].([]any)
	assert.Equal(t, "hello", args[1].(map[string]any)["body"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts.URL+"/computers", `{}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "netsandbox_computers_active 1")
	assert.Contains(t, text, `netsandbox_resources_limit{kind="http"} 16`)
	assert.Contains(t, text, "go_goroutines")
}

func TestRateLimitApplied(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	first, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	first.Body.Close()
	second, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	second.Body.Close()

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestInvalidNetworkConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Network.Workers = 0

	_, err := NewServerWithDeps(cfg, computer.Deps{}, logging.Nop())
	assert.Error(t, err)
}

func TestCloseRemovesComputers(t *testing.T) {
	srv, ts := newTestServer(t)
	post(t, ts.URL+"/computers", `{}`)
	require.Equal(t, 1, srv.Manager().Count())

	require.NoError(t, srv.Close())
	assert.Equal(t, 0, srv.Manager().Count())
}
