package client

import (
	"context"
	"errors"
	"sync"
)

var errAbnormalClosure = errors.New("websocket: close 1006 (abnormal closure)")

// mockTransport is an in-memory Transport driven by the test.
type mockTransport struct {
	inbound chan []byte
	dropped chan struct{}
	closed  chan struct{}

	mu         sync.Mutex
	written    []string
	closeCodes []int
	failWrites bool
	dropOnce   sync.Once
	closeOnce  sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		inbound: make(chan []byte, 16),
		dropped: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (t *mockTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case <-t.dropped:
		return nil, errAbnormalClosure
	case <-t.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *mockTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWrites {
		return errors.New("broken pipe")
	}
	t.written = append(t.written, string(data))
	return nil
}

func (t *mockTransport) Close(code int, _ string) error {
	t.mu.Lock()
	t.closeCodes = append(t.closeCodes, code)
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// drop simulates the server going away.
func (t *mockTransport) drop() {
	t.dropOnce.Do(func() { close(t.dropped) })
}

func (t *mockTransport) push(frame string) {
	t.inbound <- []byte(frame)
}

func (t *mockTransport) getWritten() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]string, len(t.written))
	copy(cp, t.written)
	return cp
}

func (t *mockTransport) getCloseCodes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]int, len(t.closeCodes))
	copy(cp, t.closeCodes)
	return cp
}

func (t *mockTransport) setFailWrites(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWrites = fail
}

// mockDialer records every dial and hands out mockTransports.
type mockDialer struct {
	mu         sync.Mutex
	targets    []string
	transports []*mockTransport
	fail       error
}

func (d *mockDialer) Dial(_ context.Context, target string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target)
	if d.fail != nil {
		return nil, d.fail
	}
	t := newMockTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *mockDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *mockDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.targets)
}

func (d *mockDialer) getTargets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]string, len(d.targets))
	copy(cp, d.targets)
	return cp
}

func (d *mockDialer) transport(i int) *mockTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

// dialerFunc runs fn on every dial and never yields a transport.
type dialerFunc func()

func (f dialerFunc) Dial(context.Context, string) (Transport, error) {
	f()
	return nil, errors.New("no transport")
}
