package bridge

import (
	"context"

	"github.com/orchestra-mcp/notify/src/types"
)

// Bridge relays tenant messages between relay instances.
type Bridge interface {
	// Publish sends a message to all other instances.
	Publish(msg types.Message) error

	// Start begins listening for messages from other instances.
	Start(ctx context.Context) error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// BroadcastTarget is implemented by the hub to receive bridged messages.
type BroadcastTarget interface {
	BroadcastToLocal(msg types.Message)
}
