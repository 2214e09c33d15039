package client

import "time"

// State is the lifecycle stage of the notification channel.
type State int

const (
	// StateIdle means no session identity is held; no socket exists.
	StateIdle State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means the transport is open and keepalives are running.
	StateOpen

	// StateClosedUnexpected means the transport dropped; a reconnect is
	// pending unless the network is offline.
	StateClosedUnexpected

	// StateClosedManual means the owner tore the channel down (offline or
	// Close). No reconnect is scheduled.
	StateClosedManual
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedUnexpected:
		return "closed_unexpected"
	case StateClosedManual:
		return "closed_manual"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	State    State
	Session  string
	Target   string
	Attempts int
	// RetryIn is the delay of the pending reconnect, zero when none is pending.
	RetryIn time.Duration
	Online  bool
}

// Backoff computes reconnect delays: Base doubled per attempt, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is 1s doubling up to 15s.
var DefaultBackoff = Backoff{Base: time.Second, Max: 15 * time.Second}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
