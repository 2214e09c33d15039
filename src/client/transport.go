package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// CloseNormal is the close code sent on deliberate teardown.
const CloseNormal = websocket.CloseNormalClosure

// Transport is one live connection to the notification endpoint.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, target string) (Transport, error)
}

// WebSocketDialer dials the endpoint with fasthttp/websocket.
type WebSocketDialer struct {
	dialer       websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
}

type DialerOption func(*WebSocketDialer)

// WithToken sends token as a bearer Authorization header on the handshake.
func WithToken(token string) DialerOption {
	return func(d *WebSocketDialer) {
		if token != "" {
			d.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithHandshakeTimeout(timeout time.Duration) DialerOption {
	return func(d *WebSocketDialer) {
		d.dialer.HandshakeTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) DialerOption {
	return func(d *WebSocketDialer) {
		d.writeTimeout = timeout
	}
}

func WithHeader(key, value string) DialerOption {
	return func(d *WebSocketDialer) {
		d.header.Set(key, value)
	}
}

// NewWebSocketDialer creates a dialer with a 10s handshake and write timeout.
func NewWebSocketDialer(opts ...DialerOption) *WebSocketDialer {
	d := &WebSocketDialer{
		dialer:       *websocket.DefaultDialer,
		header:       make(http.Header),
		writeTimeout: 10 * time.Second,
	}
	d.dialer.HandshakeTimeout = 10 * time.Second

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial performs the WebSocket handshake against target.
func (d *WebSocketDialer) Dial(ctx context.Context, target string) (Transport, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	conn, _, err := d.dialer.DialContext(ctx, target, d.header.Clone())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &wsTransport{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// wsTransport adapts a websocket.Conn to Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = t.conn.Close() })
	defer stop()

	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return websocket.ErrCloseSent
	}
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
