package providers

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/bus"
	"github.com/orchestra-mcp/notify/src/client"
	"github.com/orchestra-mcp/notify/src/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestRelay(t *testing.T, cfg *config.RelayConfig) *Relay {
	t.Helper()
	r := NewRelay(cfg, zerolog.Nop(), nil)
	require.NoError(t, r.Activate(context.Background()))
	t.Cleanup(func() { _ = r.Deactivate() })
	return r
}

// serve runs the relay on a loopback listener and returns its host:port.
func serve(t *testing.T, r *Relay) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fasthttp.Server{Handler: r.Handler()}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = r.Deactivate()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.ShutdownWithContext(ctx)
	})
	return ln.Addr().String()
}

func TestActivateAndDeactivate(t *testing.T) {
	r := NewRelay(nil, zerolog.Nop(), nil)
	assert.False(t, r.IsActive())

	require.NoError(t, r.Activate(context.Background()))
	assert.True(t, r.IsActive())
	assert.NotNil(t, r.Service())

	require.NoError(t, r.Deactivate())
	assert.False(t, r.IsActive())
}

func TestInfoRoute(t *testing.T) {
	r := newTestRelay(t, nil)

	resp, err := r.app.Test(httptest.NewRequest(http.MethodGet, "/ws/info", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["websocket"])
	assert.Equal(t, "/notifications/{tenant}", body["endpoint"])
	assert.Equal(t, float64(0), body["clients"])
	assert.Equal(t, false, body["bridge"])
}

func TestPublishRouteValidation(t *testing.T) {
	r := newTestRelay(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"event":"produit_create","payload":{"id":1}}`, http.StatusAccepted},
		{"missing event", `{"payload":{}}`, http.StatusBadRequest},
		{"wildcard event", `{"event":"*"}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/tenants/42/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSocketRequiresUpgrade(t *testing.T) {
	r := newTestRelay(t, nil)
	addr := serve(t, r)

	resp, err := http.Get("http://" + addr + "/notifications/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	resp2, err := http.Get("http://" + addr + "/notifications/42/extra")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestEndToEndDelivery(t *testing.T) {
	r := newTestRelay(t, nil)
	addr := serve(t, r)

	b := bus.New(zerolog.Nop())
	received := make(chan any, 4)
	b.On("produit_create", func(p any) { received <- p })

	m := client.New(b, client.NewWebSocketDialer(), client.WithBaseURL("ws://"+addr+"/notifications"))
	m.Start()
	defer m.Close()

	require.NoError(t, m.SetSession(session.Identity{ID: "42"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Readiness().Wait(ctx, true))
	require.Eventually(t, func() bool {
		return r.Service().Tenants()["42"] == 1
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Post(
		"http://"+addr+"/api/tenants/42/events",
		"application/json",
		strings.NewReader(`{"event":"produit_create","payload":{"id":7}}`),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case p := <-received:
		assert.Equal(t, map[string]any{"id": float64(7)}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `notify_relay_events_published_total{event="produit_create"} 1`)
	assert.Contains(t, string(metrics), "notify_relay_connected_clients 1")
}

func TestSocketAuth(t *testing.T) {
	cfg := config.DefaultRelayConfig()
	cfg.JWTSecret = "test-secret"
	r := newTestRelay(t, cfg)
	addr := serve(t, r)

	signer := session.NewVerifier("test-secret")
	good, err := signer.Sign("42", nil)
	require.NoError(t, err)
	other, err := signer.Sign("7", nil)
	require.NoError(t, err)

	target := "ws://" + addr + "/notifications/42"
	ctx := context.Background()

	_, err = client.NewWebSocketDialer().Dial(ctx, target)
	assert.Error(t, err, "missing token")

	_, err = client.NewWebSocketDialer(client.WithToken(other)).Dial(ctx, target)
	assert.Error(t, err, "token for another tenant")

	tr, err := client.NewWebSocketDialer(client.WithToken(good)).Dial(ctx, target)
	require.NoError(t, err)
	_ = tr.Close(client.CloseNormal, "")

	tr, err = client.NewWebSocketDialer().Dial(ctx, target+"?token="+good)
	require.NoError(t, err)
	_ = tr.Close(client.CloseNormal, "")
}

func TestBearerToken(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer abc ")
	assert.Equal(t, "abc", bearerToken(&ctx))

	var q fasthttp.RequestCtx
	q.Request.SetRequestURI("/notifications/42?token=xyz")
	assert.Equal(t, "xyz", bearerToken(&q))
}
