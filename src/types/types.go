package types

import (
	"encoding/json"
	"time"
)

// Wildcard is the reserved event name whose subscribers observe every envelope.
const Wildcard = "*"

// Keepalive frames sent by the client. They are plain text, never JSON.
const (
	PingMessage  = "ping"
	HelloMessage = "hello"
)

// Envelope is the unit of data carried over the notification channel.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Handler receives the payload of a named event, or the full Envelope
// when registered under Wildcard.
type Handler func(payload any)

// DecodeEnvelope parses a raw frame. It reports false for anything that is
// not a JSON object carrying a non-empty string event.
func DecodeEnvelope(data []byte) (Envelope, bool) {
	var raw struct {
		Event   *json.RawMessage `json:"event"`
		Payload any              `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.Event == nil {
		return Envelope{}, false
	}
	var event string
	if err := json.Unmarshal(*raw.Event, &event); err != nil || event == "" {
		return Envelope{}, false
	}
	return Envelope{Event: event, Payload: raw.Payload}, true
}

// ClientInfo holds metadata about a socket connected to the relay.
type ClientInfo struct {
	ID          string    `json:"id"`
	Tenant      string    `json:"tenant"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Message is an envelope addressed to every socket of a tenant.
type Message struct {
	Tenant    string    `json:"tenant"`
	Envelope  Envelope  `json:"envelope"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn abstracts a server-side WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}
