package readiness

import (
	"context"
	"sync"
)

// Provider holds the channel readiness flag for any number of consumers.
type Provider struct {
	mu        sync.RWMutex
	ready     bool
	nextID    uint64
	listeners map[uint64]func(bool)
}

// New returns a provider reporting not ready.
func New() *Provider {
	return &Provider{listeners: make(map[uint64]func(bool))}
}

// Ready reports the current value.
func (p *Provider) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Set stores ready and notifies listeners if the value changed.
func (p *Provider) Set(ready bool) {
	p.mu.Lock()
	if p.ready == ready {
		p.mu.Unlock()
		return
	}
	p.ready = ready
	listeners := make([]func(bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(ready)
	}
}

// Subscribe registers fn to be called on every change. The returned
// function removes it.
func (p *Provider) Subscribe(fn func(bool)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Wait blocks until the value equals want or ctx is done.
func (p *Provider) Wait(ctx context.Context, want bool) error {
	changed := make(chan struct{}, 1)
	cancel := p.Subscribe(func(bool) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if p.Ready() == want {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
