package hub

import (
	"sync"

	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// MessageBridge publishes messages to other relay instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(msg types.Message) error
	Available() bool
}

// Hub manages notification sockets grouped by tenant.
type Hub struct {
	clients map[string]*Client
	tenants map[string]map[string]bool // tenant -> set of clientIDs

	register   chan *Client
	unregister chan *Client
	broadcast  chan types.Message
	localCast  chan types.Message // messages from bridge, no re-publish

	onConnect []func(types.ClientInfo)
	onDisconn []func(types.ClientInfo)

	bridge  MessageBridge
	metrics *metrics.Relay
	mu      sync.RWMutex
	logger  zerolog.Logger
	done    chan struct{}
	stop    sync.Once
}

// New creates a new Hub instance. m may be nil.
func New(logger zerolog.Logger, m *metrics.Relay) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		tenants:    make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan types.Message, 256),
		localCast:  make(chan types.Message, 256),
		metrics:    m,
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
}

// SetBridge attaches a cross-instance message bridge to the hub.
// When set, published messages are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastToLocal delivers a message from the bridge to local sockets only.
// It does not re-publish to the bridge, preventing infinite loops.
func (h *Hub) BroadcastToLocal(msg types.Message) {
	h.metrics.Relayed()
	select {
	case h.localCast <- msg:
	case <-h.done:
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.publishToBridge(msg)
			h.broadcastToTenant(msg)
		case msg := <-h.localCast:
			h.broadcastToTenant(msg)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop halts the hub event loop and closes every socket.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	if h.tenants[c.Tenant] == nil {
		h.tenants[c.Tenant] = make(map[string]bool)
	}
	h.tenants[c.Tenant][c.ID] = true
	callbacks := h.onConnect
	h.mu.Unlock()

	h.metrics.ClientConnected()
	h.logger.Info().Str("client_id", c.ID).Str("tenant", c.Tenant).Msg("client registered")

	info := c.Info()
	for _, cb := range callbacks {
		cb(info)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	if subs, ok := h.tenants[c.Tenant]; ok {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.tenants, c.Tenant)
		}
	}
	callbacks := h.onDisconn
	h.mu.Unlock()

	c.Close()
	h.metrics.ClientDisconnected()
	h.logger.Info().Str("client_id", c.ID).Str("tenant", c.Tenant).Msg("client unregistered")

	info := c.Info()
	for _, cb := range callbacks {
		cb(info)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.tenants = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
		h.metrics.ClientDisconnected()
	}
}
