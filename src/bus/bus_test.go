package bus

import (
	"sync"
	"testing"

	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return New(zerolog.Nop())
}

func TestEmitNamedAndWildcard(t *testing.T) {
	b := newTestBus()

	var named []any
	var wild []any
	b.On("produit_create", func(p any) { named = append(named, p) })
	b.On(types.Wildcard, func(p any) { wild = append(wild, p) })

	payload := map[string]any{"id": float64(7)}
	b.Emit("produit_create", payload)

	require.Len(t, named, 1)
	assert.Equal(t, payload, named[0])
	require.Len(t, wild, 1)
	assert.Equal(t, types.Envelope{Event: "produit_create", Payload: payload}, wild[0])
}

func TestEmitOtherEventOnlyReachesWildcard(t *testing.T) {
	b := newTestBus()

	namedCalls := 0
	wildCalls := 0
	b.On("a", func(any) { namedCalls++ })
	b.On(types.Wildcard, func(any) { wildCalls++ })

	b.Emit("b", nil)

	assert.Equal(t, 0, namedCalls)
	assert.Equal(t, 1, wildCalls)
}

func TestNamedBeforeWildcard(t *testing.T) {
	b := newTestBus()

	var order []string
	b.On(types.Wildcard, func(any) { order = append(order, "wildcard") })
	b.On("x", func(any) { order = append(order, "named") })

	b.Emit("x", 1)
	assert.Equal(t, []string{"named", "wildcard"}, order)
}

func TestFanOutToMultipleHandlers(t *testing.T) {
	b := newTestBus()

	calls := 0
	for i := 0; i < 3; i++ {
		b.On("x", func(any) { calls++ })
	}
	b.Emit("x", nil)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, b.Count("x"))
}

func TestEmitWithoutSubscribers(t *testing.T) {
	b := newTestBus()
	assert.NotPanics(t, func() { b.Emit("nobody", 1) })
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := newTestBus()

	calls := 0
	sub := b.On("x", func(any) { calls++ })
	other := b.On("x", func(any) {})

	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Emit("x", nil)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, b.Count("x"))

	other.Unsubscribe()
	assert.Equal(t, 0, b.Count("x"))
}

func TestUnsubscribeWildcard(t *testing.T) {
	b := newTestBus()

	calls := 0
	sub := b.On(types.Wildcard, func(any) { calls++ })
	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Emit("x", nil)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, b.Count(types.Wildcard))
}

func TestOffRequiresMatchingEvent(t *testing.T) {
	b := newTestBus()

	calls := 0
	sub := b.On("x", func(any) { calls++ })

	b.Off("y", sub)
	b.Off(types.Wildcard, sub)
	b.Emit("x", nil)
	assert.Equal(t, 1, calls)

	b.Off("x", sub)
	b.Emit("x", nil)
	assert.Equal(t, 1, calls)

	assert.NotPanics(t, func() { b.Off("x", nil) })
}

func TestOffNamedKeepsWildcard(t *testing.T) {
	b := newTestBus()

	wild := 0
	b.On(types.Wildcard, func(any) { wild++ })
	named := b.On("x", func(any) {})

	b.Off("x", named)
	b.Emit("x", nil)
	assert.Equal(t, 1, wild)
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	b := newTestBus()

	calls := 0
	var self *Subscription
	self = b.On("x", func(any) {
		calls++
		self.Unsubscribe()
	})
	b.On("x", func(any) { calls++ })

	b.Emit("x", nil)
	assert.Equal(t, 2, calls)

	b.Emit("x", nil)
	assert.Equal(t, 3, calls)
}

func TestSubscribeDuringEmit(t *testing.T) {
	b := newTestBus()

	added := 0
	b.On("x", func(any) {
		b.On("x", func(any) { added++ })
	})

	b.Emit("x", nil)
	assert.Equal(t, 0, added, "handlers added during dispatch wait for the next emit")

	b.Emit("x", nil)
	assert.Equal(t, 1, added)
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	b := newTestBus()

	calls := 0
	b.On("x", func(any) { panic("boom") })
	b.On("x", func(any) { calls++ })
	b.On(types.Wildcard, func(any) { panic("boom") })
	b.On(types.Wildcard, func(any) { calls++ })

	assert.NotPanics(t, func() { b.Emit("x", nil) })
	assert.Equal(t, 2, calls)
}

func TestConcurrentEmitAndSubscribe(t *testing.T) {
	b := newTestBus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := b.On("x", func(any) {})
				sub.Unsubscribe()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Emit("x", j)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Count("x"))
}
