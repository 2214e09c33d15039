package hub

import (
	"github.com/orchestra-mcp/notify/src/types"
)

func (h *Hub) broadcastToTenant(msg types.Message) {
	h.mu.RLock()
	subs, ok := h.tenants[msg.Tenant]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy clients to avoid holding lock during sends.
	clients := make([]*Client, 0, len(subs))
	for id := range subs {
		if c, exists := h.clients[id]; exists {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.Enqueue(msg.Envelope) {
			h.metrics.SendDropped()
			h.logger.Warn().Str("client_id", c.ID).Str("tenant", msg.Tenant).Msg("send buffer full, dropping")
		}
	}
}

// publishToBridge forwards a message to the bridge if one is attached.
func (h *Hub) publishToBridge(msg types.Message) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(msg); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}

// Publish sends a message to every socket of msg.Tenant, here and on
// bridged instances.
func (h *Hub) Publish(msg types.Message) {
	h.metrics.Published(msg.Envelope.Event)
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// SendToClient sends an envelope directly to a specific client.
func (h *Hub) SendToClient(clientID string, env types.Envelope) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.Enqueue(env)
}
