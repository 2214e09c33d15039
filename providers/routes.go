package providers

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// RegisterRoutes registers the info and admin routes via Fiber.
// The WebSocket upgrade uses SocketHandler, dispatched ahead of Fiber
// since Fiber v3 does not expose *fasthttp.RequestCtx.
func (r *Relay) RegisterRoutes(group fiber.Router) {
	group.Get("/ws/info", r.handleInfo)

	api := group.Group("/api")
	api.Get("/clients", r.handleListClients)
	api.Get("/tenants", r.handleListTenants)
	api.Post("/tenants/:tenant/events", r.handlePublish)
}

func (r *Relay) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  r.cfg.Path + "/{tenant}",
		"clients":   r.hub.ClientCount(),
		"tenants":   len(r.hub.Tenants()),
		"bridge":    r.bridge != nil && r.bridge.Available(),
	})
}

// Handler returns the fasthttp handler serving sockets, /metrics and the
// Fiber routes.
func (r *Relay) Handler() fasthttp.RequestHandler {
	sockets := r.SocketHandler()
	metrics := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}),
	)
	app := r.app.Handler()
	prefix := r.cfg.Path + "/"

	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case strings.HasPrefix(path, prefix):
			sockets(ctx)
		case path == "/metrics":
			metrics(ctx)
		default:
			app(ctx)
		}
	}
}

// SocketHandler returns a raw fasthttp handler upgrading
// {path}/{tenant} requests to notification sockets.
func (r *Relay) SocketHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  r.cfg.ReadBufferSize,
		WriteBufferSize: r.cfg.WriteBufferSize,
		CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
	}
	prefix := r.cfg.Path + "/"

	return func(ctx *fasthttp.RequestCtx) {
		tenant := strings.TrimPrefix(string(ctx.Path()), prefix)
		if tenant == "" || strings.Contains(tenant, "/") {
			writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown tenant path")
			return
		}
		if !websocket.FastHTTPIsWebSocketUpgrade(ctx) {
			writeError(ctx, fasthttp.StatusUpgradeRequired, "upgrade_required", "WebSocket upgrade required")
			return
		}
		if r.verifier != nil {
			id, err := r.verifier.Verify(bearerToken(ctx))
			if err != nil {
				writeError(ctx, fasthttp.StatusUnauthorized, "unauthorized", "invalid or missing token")
				return
			}
			if id.String() != tenant {
				writeError(ctx, fasthttp.StatusForbidden, "forbidden", "token does not grant this tenant")
				return
			}
		}

		clientID := uuid.New().String()
		userAgent := string(ctx.UserAgent())
		h := r.hub
		buffer := r.cfg.SendBuffer

		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			client := hub.NewClient(clientID, tenant, conn, h, buffer)
			client.UserAgent = userAgent
			h.Register(client)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			r.logger.Error().Err(err).Str("tenant", tenant).Msg("websocket upgrade failed")
		}
	}
}

// bearerToken reads the token from the Authorization header, falling back to
// the token query parameter for browsers that cannot set headers.
func bearerToken(ctx *fasthttp.RequestCtx) string {
	auth := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return string(ctx.QueryArgs().Peek("token"))
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + code + `","message":"` + message + `"}`)
}
