package providers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/bridge"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/service"
	"github.com/orchestra-mcp/notify/src/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Relay wires the hub, the publish service, the optional Redis bridge and
// the HTTP surface of a notification relay instance.
type Relay struct {
	active   bool
	cfg      *config.RelayConfig
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Relay
	verifier *session.Verifier

	hub     *hub.Hub
	service *service.Service
	bridge  bridge.Bridge
	app     *fiber.App
}

// NewRelay creates a relay. A nil registry gets a private one.
func NewRelay(cfg *config.RelayConfig, logger zerolog.Logger, reg *prometheus.Registry) *Relay {
	if cfg == nil {
		cfg = config.DefaultRelayConfig()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Relay{
		cfg:      cfg,
		logger:   logger.With().Str("component", "relay").Logger(),
		registry: reg,
		metrics:  metrics.NewRelay(reg),
	}
	if cfg.JWTSecret != "" {
		r.verifier = session.NewVerifier(cfg.JWTSecret)
	}
	return r
}

func (r *Relay) IsActive() bool { return r.active }

// Activate initializes the hub and service and starts the event loop.
func (r *Relay) Activate(ctx context.Context) error {
	r.hub = hub.New(r.logger, r.metrics)
	r.service = service.New(r.hub, r.logger)

	go r.hub.Run()

	if r.cfg.Redis {
		// Attempt Redis bridge connection (non-fatal if unavailable).
		r.initBridge(ctx)
	}

	r.app = fiber.New()
	r.RegisterRoutes(r.app)

	r.active = true
	r.logger.Info().
		Str("path", r.cfg.Path).
		Bool("auth", r.verifier != nil).
		Msg("notification relay activated")
	return nil
}

// initBridge tries to start the Redis pub/sub bridge.
// If Redis is not reachable, the hub runs in standalone mode.
func (r *Relay) initBridge(ctx context.Context) {
	cfg := bridge.RedisConfigFromEnv()
	rb, err := bridge.NewRedisBridge(cfg, r.hub, r.logger)
	if err != nil {
		r.logger.Warn().Err(err).Msg("invalid redis config, running standalone")
		return
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rb.Start(startCtx); err != nil {
		r.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		_ = rb.Stop()
		return
	}

	r.bridge = rb
	r.hub.SetBridge(rb)
	r.logger.Info().Str("redis_addr", cfg.Addr).Msg("redis bridge connected")
}

// Deactivate stops the bridge and the hub, closing every socket.
func (r *Relay) Deactivate() error {
	if r.bridge != nil {
		if err := r.bridge.Stop(); err != nil {
			r.logger.Error().Err(err).Msg("bridge stop error")
		}
		r.bridge = nil
	}
	if r.hub != nil {
		r.hub.Stop()
	}
	r.active = false
	return nil
}

// Service exposes the publish API for in-process backends.
func (r *Relay) Service() *service.Service { return r.service }

// Registry returns the registry the relay metrics are registered on.
func (r *Relay) Registry() *prometheus.Registry { return r.registry }
