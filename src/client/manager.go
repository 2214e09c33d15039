package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orchestra-mcp/notify/src/bus"
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/readiness"
	"github.com/orchestra-mcp/notify/src/session"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("notification channel closed")

// Manager owns the notification connection for one session scope. All
// connection state lives on a single loop goroutine; public methods and
// transport callbacks are posted to it.
type Manager struct {
	bus       *bus.Bus
	dialer    Dialer
	clock     clockwork.Clock
	logger    zerolog.Logger
	ready     *readiness.Provider
	metrics   *metrics.Client
	baseURL   string
	keepalive time.Duration
	backoff   Backoff

	mailbox   chan func()
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// activeGen is the generation of the open transport, 0 when none.
	// Reader goroutines drop frames once it moves on.
	activeGen atomic.Uint64

	mu     sync.RWMutex
	status Status

	// Owned by the loop goroutine.
	conn    connState
	nextGen uint64
	online  bool
}

// connState is the per-session connection record. A new session identity
// replaces it wholesale.
type connState struct {
	state          State
	identity       session.Identity
	target         string
	gen            uint64
	connID         string
	transport      Transport
	ctx            context.Context
	cancel         context.CancelFunc
	attempts       int
	manuallyClosed bool
	ticker         clockwork.Ticker
	retry          clockwork.Timer
	retryIn        time.Duration
}

type Option func(*Manager)

// WithBaseURL sets the endpoint the session id is appended to.
func WithBaseURL(base string) Option {
	return func(m *Manager) {
		m.baseURL = base
	}
}

func WithKeepalive(interval time.Duration) Option {
	return func(m *Manager) {
		m.keepalive = interval
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(m *Manager) {
		m.backoff = Backoff{Base: base, Max: max}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithReadiness publishes readiness into an existing provider.
func WithReadiness(p *readiness.Provider) Option {
	return func(m *Manager) {
		m.ready = p
	}
}

func WithMetrics(mc *metrics.Client) Option {
	return func(m *Manager) {
		m.metrics = mc
	}
}

// New creates a manager that emits inbound envelopes on b.
func New(b *bus.Bus, dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		bus:       b,
		dialer:    dialer,
		clock:     clockwork.NewRealClock(),
		logger:    zerolog.Nop(),
		keepalive: 10 * time.Second,
		backoff:   DefaultBackoff,
		mailbox:   make(chan func(), 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		online:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ready == nil {
		m.ready = readiness.New()
	}
	m.logger = m.logger.With().Str("component", "notify-client").Logger()
	m.status = Status{State: StateIdle, Online: true}
	return m
}

// Start launches the loop goroutine. Commands block until it runs.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Close tears the channel down and stops the loop. No reconnect happens
// afterwards.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.startOnce.Do(func() {
		close(m.stopped)
	})
	<-m.stopped
}

// SetSession switches the channel to identity. An invalid identity tears the
// channel down to idle; a different valid one tears down and reconnects with
// fresh state.
func (m *Manager) SetSession(identity session.Identity) error {
	return m.exec(func() { m.setSession(identity) })
}

// SetOnline reports a network availability transition.
func (m *Manager) SetOnline(online bool) error {
	return m.exec(func() { m.setOnline(online) })
}

// Status returns the latest snapshot.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Ready reports whether the channel is open.
func (m *Manager) Ready() bool { return m.ready.Ready() }

// Readiness returns the provider consumers subscribe to.
func (m *Manager) Readiness() *readiness.Provider { return m.ready }

func (m *Manager) run() {
	defer close(m.stopped)

	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-m.tickC():
			m.sendKeepalive()
		case <-m.retryC():
			m.fireRetry()
		case <-m.done:
			m.teardown(StateClosedManual)
			m.snapshot()
			return
		}
		m.snapshot()
	}
}

// post queues fn on the loop. It reports false once the manager is closed.
func (m *Manager) post(fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.mailbox <- fn:
		return true
	case <-m.done:
		return false
	}
}

// exec runs fn on the loop and waits for it.
func (m *Manager) exec(fn func()) error {
	finished := make(chan struct{})
	if !m.post(func() {
		fn()
		m.snapshot()
		close(finished)
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-m.stopped:
		return ErrClosed
	}
}

func (m *Manager) tickC() <-chan time.Time {
	if m.conn.ticker == nil {
		return nil
	}
	return m.conn.ticker.Chan()
}

func (m *Manager) retryC() <-chan time.Time {
	if m.conn.retry == nil {
		return nil
	}
	return m.conn.retry.Chan()
}

func (m *Manager) setSession(identity session.Identity) {
	if identity.Valid() && identity == m.conn.identity {
		return
	}

	if m.conn.state != StateIdle {
		m.teardown(StateIdle)
	}
	m.conn = connState{state: StateIdle, identity: identity, target: m.target(identity)}

	if m.conn.target == "" {
		m.logger.Debug().Str("session", identity.ID).Msg("no connection target, staying idle")
		return
	}
	m.connect()
}

func (m *Manager) target(identity session.Identity) string {
	if !identity.Valid() || m.baseURL == "" {
		return ""
	}
	return strings.TrimRight(m.baseURL, "/") + "/" + url.PathEscape(identity.ID)
}

func (m *Manager) setOnline(online bool) {
	if m.online == online {
		return
	}
	m.online = online
	c := &m.conn

	if !online {
		m.logger.Info().Msg("network offline")
		m.stopRetry()
		if c.state == StateConnecting || c.state == StateOpen {
			c.manuallyClosed = true
			m.release()
			m.setReady(false)
			c.state = StateClosedManual
		}
		return
	}

	m.logger.Info().Msg("network online")
	if c.target != "" && c.transport == nil && c.state != StateConnecting {
		m.connect()
	}
}

// connect starts a dial unless a transport is already current.
func (m *Manager) connect() {
	c := &m.conn
	if c.state == StateConnecting || c.state == StateOpen {
		return
	}
	if c.target == "" {
		c.state = StateIdle
		return
	}

	m.stopRetry()
	m.nextGen++
	gen := m.nextGen
	ctx, cancel := context.WithCancel(context.Background())
	c.gen = gen
	c.ctx = ctx
	c.cancel = cancel
	c.connID = uuid.NewString()
	c.manuallyClosed = false
	c.state = StateConnecting

	target := c.target
	logger := m.logger.With().Str("conn_id", c.connID).Str("target", target).Logger()
	logger.Debug().Int("attempt", c.attempts).Msg("connecting")

	go func() {
		t, err := m.dial(ctx, target)
		if !m.post(func() { m.dialed(gen, t, err) }) && t != nil {
			_ = t.Close(CloseNormal, "")
		}
	}()
}

func (m *Manager) dial(ctx context.Context, target string) (t Transport, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("dial panicked: %v", r)
		}
	}()
	return m.dialer.Dial(ctx, target)
}

func (m *Manager) dialed(gen uint64, t Transport, err error) {
	c := &m.conn
	if gen != c.gen || c.state != StateConnecting {
		if t != nil {
			_ = t.Close(CloseNormal, "superseded")
		}
		return
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("conn_id", c.connID).Msg("connect failed")
		m.drop(gen)
		return
	}
	m.open(t)
}

func (m *Manager) open(t Transport) {
	c := &m.conn
	c.transport = t
	c.state = StateOpen
	c.attempts = 0
	m.activeGen.Store(c.gen)
	m.setReady(true)
	m.logger.Info().Str("conn_id", c.connID).Str("target", c.target).Msg("notification channel open")

	if err := t.Write(c.ctx, []byte(types.HelloMessage)); err != nil {
		m.logger.Warn().Err(err).Str("conn_id", c.connID).Msg("hello failed")
		m.drop(c.gen)
		return
	}
	c.ticker = m.clock.NewTicker(m.keepalive)
	go m.read(c.ctx, c.gen, t)
}

// read pumps frames from t into the bus in arrival order.
func (m *Manager) read(ctx context.Context, gen uint64, t Transport) {
	for {
		data, err := t.Read(ctx)
		if err != nil {
			m.post(func() { m.dropped(gen, err) })
			return
		}
		if m.activeGen.Load() != gen {
			return
		}
		m.dispatch(data)
	}
}

func (m *Manager) dispatch(data []byte) {
	env, ok := types.DecodeEnvelope(data)
	if !ok {
		m.metrics.Dropped()
		m.logger.Debug().Int("bytes", len(data)).Msg("dropping malformed frame")
		return
	}
	m.metrics.Received(env.Event)
	m.bus.Emit(env.Event, env.Payload)
}

func (m *Manager) dropped(gen uint64, err error) {
	c := &m.conn
	if gen != c.gen || c.state != StateOpen {
		return
	}
	m.logger.Warn().Err(err).Str("conn_id", c.connID).Msg("notification channel lost")
	m.drop(gen)
}

func (m *Manager) sendKeepalive() {
	c := &m.conn
	if c.state != StateOpen || c.transport == nil {
		return
	}
	if err := c.transport.Write(c.ctx, []byte(types.PingMessage)); err != nil {
		m.logger.Warn().Err(err).Str("conn_id", c.connID).Msg("keepalive failed")
		m.drop(c.gen)
	}
}

// drop handles an unexpected loss of the transport of generation gen.
func (m *Manager) drop(gen uint64) {
	c := &m.conn
	if c.manuallyClosed || gen != c.gen {
		return
	}
	m.release()
	m.setReady(false)
	c.state = StateClosedUnexpected
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	c := &m.conn
	if !m.online {
		m.logger.Debug().Msg("offline, reconnect suppressed")
		return
	}
	c.attempts++
	delay := m.backoff.Delay(c.attempts)
	c.retry = m.clock.NewTimer(delay)
	c.retryIn = delay
	m.metrics.ReconnectScheduled()
	m.logger.Info().Int("attempt", c.attempts).Dur("delay", delay).Msg("reconnect scheduled")
}

func (m *Manager) fireRetry() {
	c := &m.conn
	c.retry = nil
	c.retryIn = 0
	if c.state != StateClosedUnexpected || !m.online {
		return
	}
	m.connect()
}

func (m *Manager) stopRetry() {
	c := &m.conn
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.retryIn = 0
}

// release drops the current transport and keepalive ticker.
func (m *Manager) release() {
	c := &m.conn
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	m.activeGen.Store(0)
	// Close before cancel so the close frame is written ahead of the
	// reader tearing the socket down.
	if c.transport != nil {
		_ = c.transport.Close(CloseNormal, "")
		c.transport = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// teardown is the deliberate close: no reconnect, counters reset.
func (m *Manager) teardown(next State) {
	c := &m.conn
	c.manuallyClosed = true
	m.stopRetry()
	m.release()
	c.attempts = 0
	m.setReady(false)
	if c.state != StateIdle {
		m.logger.Info().Str("session", c.identity.ID).Str("state", next.String()).Msg("notification channel closed")
	}
	c.state = next
}

func (m *Manager) setReady(ready bool) {
	m.ready.Set(ready)
	m.metrics.SetOpen(ready)
}

func (m *Manager) snapshot() {
	c := &m.conn
	m.mu.Lock()
	m.status = Status{
		State:    c.state,
		Session:  c.identity.ID,
		Target:   c.target,
		Attempts: c.attempts,
		RetryIn:  c.retryIn,
		Online:   m.online,
	}
	m.mu.Unlock()
}
