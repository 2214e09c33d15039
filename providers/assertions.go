package providers

import (
	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/notify/src/bridge"
	"github.com/orchestra-mcp/notify/src/client"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/types"
)

// Compile-time interface assertions.
var (
	_ bridge.Bridge          = (*bridge.RedisBridge)(nil)
	_ bridge.BroadcastTarget = (*hub.Hub)(nil)
	_ hub.MessageBridge      = (*bridge.RedisBridge)(nil)
	_ types.Conn             = (*websocket.Conn)(nil)
	_ client.Dialer          = (*client.WebSocketDialer)(nil)
)
