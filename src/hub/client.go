package hub

import (
	"sync"
	"time"

	"github.com/orchestra-mcp/notify/src/types"
)

// Client wraps a notification socket and manages message flow.
type Client struct {
	ID          string
	Tenant      string
	UserAgent   string
	conn        types.Conn
	hub         *Hub
	send        chan types.Envelope
	connectedAt time.Time
	lastSeen    time.Time
	mu          sync.RWMutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new socket wrapper for tenant with a send buffer of
// the given size.
func NewClient(id, tenant string, conn types.Conn, h *Hub, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	now := time.Now()
	return &Client{
		ID:          id,
		Tenant:      tenant,
		conn:        conn,
		hub:         h,
		send:        make(chan types.Envelope, buffer),
		connectedAt: now,
		lastSeen:    now,
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.ClientInfo{
		ID:          c.ID,
		Tenant:      c.Tenant,
		ConnectedAt: c.connectedAt,
		LastSeen:    c.lastSeen,
		UserAgent:   c.UserAgent,
	}
}

// Enqueue queues env for the write pump. It reports false when the buffer
// is full or the client is closed.
func (c *Client) Enqueue(env types.Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// ReadPump consumes inbound frames until the socket fails. The channel is
// receive-only for clients; inbound frames only refresh liveness.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		switch string(data) {
		case types.PingMessage, types.HelloMessage:
		default:
			c.hub.logger.Debug().
				Str("client_id", c.ID).
				Int("bytes", len(data)).
				Msg("ignoring inbound frame")
		}
	}
}

// WritePump writes queued envelopes to the socket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case env := <-c.send:
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
