// Package hubtest provides an in-memory types.Conn for hub tests.
package hubtest

import (
	"errors"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/notify/src/types"
)

// ErrClosed is returned by reads on a closed Conn.
var ErrClosed = errors.New("connection closed")

// Conn implements types.Conn without a real WebSocket.
type Conn struct {
	mu       sync.Mutex
	written  []any
	readCh   chan []byte
	closed   bool
	closedCh chan struct{}
}

// NewConn returns an open Conn.
func NewConn() *Conn {
	return &Conn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.written = append(c.written, v)
	return nil
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.readCh:
		return websocket.TextMessage, data, nil
	case <-c.closedCh:
		return 0, nil, ErrClosed
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

// Push queues an inbound text frame.
func (c *Conn) Push(frame string) {
	c.readCh <- []byte(frame)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Written returns the envelopes written so far.
func (c *Conn) Written() []types.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Envelope, 0, len(c.written))
	for _, v := range c.written {
		if env, ok := v.(types.Envelope); ok {
			out = append(out, env)
		}
	}
	return out
}
