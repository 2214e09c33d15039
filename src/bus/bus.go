package bus

import (
	"sync"

	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// Bus fans decoded server events out to in-process subscribers.
// Named subscribers receive the payload; wildcard subscribers receive
// the whole types.Envelope.
type Bus struct {
	mu       sync.RWMutex
	named    map[string]map[*Subscription]struct{}
	wildcard map[*Subscription]struct{}
	logger   zerolog.Logger
}

// Subscription is the handle returned by On. Its pointer identity is the
// identity of the registration.
type Subscription struct {
	bus     *Bus
	event   string
	handler types.Handler
}

// New creates an empty bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		named:    make(map[string]map[*Subscription]struct{}),
		wildcard: make(map[*Subscription]struct{}),
		logger:   logger.With().Str("component", "bus").Logger(),
	}
}

// On registers handler for event. Registering under types.Wildcard
// observes every emitted event.
func (b *Bus) On(event string, handler types.Handler) *Subscription {
	sub := &Subscription{bus: b, event: event, handler: handler}

	b.mu.Lock()
	defer b.mu.Unlock()
	if event == types.Wildcard {
		b.wildcard[sub] = struct{}{}
		return sub
	}
	if b.named[event] == nil {
		b.named[event] = make(map[*Subscription]struct{})
	}
	b.named[event][sub] = struct{}{}
	return sub
}

// Off removes sub from the set registered under event. It is a no-op when
// sub was registered under a different name or is already gone.
func (b *Bus) Off(event string, sub *Subscription) {
	if sub == nil || sub.event != event {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if event == types.Wildcard {
		delete(b.wildcard, sub)
		return
	}
	subs, ok := b.named[event]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.named, event)
	}
}

// Emit delivers payload to every handler of event, then the envelope to
// every wildcard handler. Handlers run synchronously on the caller's
// goroutine against a snapshot of the registry.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	named := make([]*Subscription, 0, len(b.named[event]))
	for sub := range b.named[event] {
		named = append(named, sub)
	}
	wildcard := make([]*Subscription, 0, len(b.wildcard))
	for sub := range b.wildcard {
		wildcard = append(wildcard, sub)
	}
	b.mu.RUnlock()

	for _, sub := range named {
		b.invoke(sub, event, payload)
	}
	if len(wildcard) == 0 {
		return
	}
	env := types.Envelope{Event: event, Payload: payload}
	for _, sub := range wildcard {
		b.invoke(sub, event, env)
	}
}

// Count returns the number of handlers registered under event.
func (b *Bus) Count(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if event == types.Wildcard {
		return len(b.wildcard)
	}
	return len(b.named[event])
}

func (b *Bus) invoke(sub *Subscription, event string, arg any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", event).
				Str("subscription", sub.event).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()
	sub.handler(arg)
}

// Event returns the name the subscription was registered under.
func (s *Subscription) Event() string { return s.event }

// Unsubscribe removes this registration. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.bus.Off(s.event, s)
}
