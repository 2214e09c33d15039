// Package metrics holds the Prometheus collectors for the client and the
// relay. All methods are safe on a nil receiver so components can run
// without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client collects notification channel counters.
type Client struct {
	open       prometheus.Gauge
	reconnects prometheus.Counter
	received   *prometheus.CounterVec
	malformed  prometheus.Counter
}

// NewClient registers client collectors on reg.
func NewClient(reg prometheus.Registerer) *Client {
	f := promauto.With(reg)
	return &Client{
		open: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_client_open",
			Help: "1 while the notification channel is open",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "notify_client_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after unexpected closures",
		}),
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_client_events_received_total",
			Help: "Envelopes dispatched to the event bus",
		}, []string{"event"}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Name: "notify_client_messages_dropped_total",
			Help: "Inbound frames dropped because they were not valid envelopes",
		}),
	}
}

func (m *Client) SetOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.open.Set(1)
		return
	}
	m.open.Set(0)
}

func (m *Client) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Client) Received(event string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(event).Inc()
}

func (m *Client) Dropped() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// Relay collects server-side counters.
type Relay struct {
	clients   prometheus.Gauge
	published *prometheus.CounterVec
	relayed   prometheus.Counter
	dropped   prometheus.Counter
}

// NewRelay registers relay collectors on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	f := promauto.With(reg)
	return &Relay{
		clients: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_relay_connected_clients",
			Help: "Sockets currently registered with the hub",
		}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_relay_events_published_total",
			Help: "Envelopes published to tenants",
		}, []string{"event"}),
		relayed: f.NewCounter(prometheus.CounterOpts{
			Name: "notify_relay_bridge_received_total",
			Help: "Envelopes received from other instances through the bridge",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "notify_relay_sends_dropped_total",
			Help: "Envelopes dropped because a socket send buffer was full",
		}),
	}
}

func (m *Relay) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

func (m *Relay) ClientDisconnected() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

func (m *Relay) Published(event string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(event).Inc()
}

func (m *Relay) Relayed() {
	if m == nil {
		return
	}
	m.relayed.Inc()
}

func (m *Relay) SendDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
