package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidMessage is returned when a tenant or event name is missing.
	ErrInvalidMessage = errors.New("tenant and event are required")

	// ErrClientNotFound is returned when a socket is unknown or cannot
	// accept more envelopes.
	ErrClientNotFound = errors.New("client not found or buffer full")
)

// Service is the publish API backends use to notify tenants.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a notification service backed by the given hub.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	return &Service{
		hub:    h,
		logger: logger.With().Str("component", "service").Logger(),
		now:    time.Now,
	}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Publish delivers event to every socket of tenant, on this instance and on
// bridged ones.
func (s *Service) Publish(tenant, event string, payload any) error {
	if tenant == "" || event == "" {
		return ErrInvalidMessage
	}
	if event == types.Wildcard {
		return fmt.Errorf("event %q is reserved: %w", event, ErrInvalidMessage)
	}

	s.hub.Publish(types.Message{
		Tenant:    tenant,
		Envelope:  types.Envelope{Event: event, Payload: payload},
		Timestamp: s.now(),
	})
	s.logger.Debug().Str("tenant", tenant).Str("event", event).Msg("published")
	return nil
}

// SendToClient sends an envelope directly to one socket.
func (s *Service) SendToClient(clientID, event string, payload any) error {
	if event == "" {
		return ErrInvalidMessage
	}
	if !s.hub.SendToClient(clientID, types.Envelope{Event: event, Payload: payload}) {
		return fmt.Errorf("client %s: %w", clientID, ErrClientNotFound)
	}
	return nil
}

// OnConnection registers a callback for new sockets.
func (s *Service) OnConnection(cb func(types.ClientInfo)) {
	s.hub.OnConnection(cb)
}

// OnDisconnection registers a callback for closed sockets.
func (s *Service) OnDisconnection(cb func(types.ClientInfo)) {
	s.hub.OnDisconnection(cb)
}

// ConnectedClients returns IDs of all connected sockets.
func (s *Service) ConnectedClients() []string {
	return s.hub.ConnectedClients()
}

// ClientInfo returns info for a connected socket.
func (s *Service) ClientInfo(clientID string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return nil, fmt.Errorf("client %s: %w", clientID, ErrClientNotFound)
	}
	return info, nil
}

// Tenants returns active tenants with their socket counts.
func (s *Service) Tenants() map[string]int {
	return s.hub.Tenants()
}
