package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilReceiversAreNoops(t *testing.T) {
	var c *Client
	var r *Relay
	assert.NotPanics(t, func() {
		c.SetOpen(true)
		c.ReconnectScheduled()
		c.Received("x")
		c.Dropped()
		r.ClientConnected()
		r.ClientDisconnected()
		r.Published("x")
		r.Relayed()
		r.SendDropped()
	})
}

func TestClientCounters(t *testing.T) {
	c := NewClient(prometheus.NewRegistry())

	c.SetOpen(true)
	c.ReconnectScheduled()
	c.ReconnectScheduled()
	c.Received("produit_create")
	c.Dropped()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.open))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.reconnects))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.received.WithLabelValues("produit_create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.malformed))

	c.SetOpen(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.open))
}

func TestRelayCounters(t *testing.T) {
	r := NewRelay(prometheus.NewRegistry())

	r.ClientConnected()
	r.ClientConnected()
	r.ClientDisconnected()
	r.Published("x")
	r.Relayed()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.clients))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.published.WithLabelValues("x")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.relayed))
}
