package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisEnvelope wraps a message with the originating instance ID
// so that a node can skip its own published messages.
type redisEnvelope struct {
	InstanceID string        `json:"instance_id"`
	Message    types.Message `json:"message"`
}

// RedisBridge relays tenant messages between relay instances over Redis
// pub/sub, one channel per tenant.
type RedisBridge struct {
	client     *redis.Client
	cfg        *RedisConfig
	instanceID string
	hub        BroadcastTarget
	logger     zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge delivering remote messages to hub.
func NewRedisBridge(cfg *RedisConfig, hub BroadcastTarget, logger zerolog.Logger) (*RedisBridge, error) {
	opt, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &RedisBridge{
		client:     redis.NewClient(opt),
		cfg:        cfg,
		instanceID: uuid.New().String(),
		hub:        hub,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
	}, nil
}

// Start pattern-subscribes to every tenant channel and begins relaying.
func (b *RedisBridge) Start(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	sub := b.client.PSubscribe(listenCtx, b.cfg.tenantPattern())

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	b.mu.Lock()
	b.active = true
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(listenCtx, sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("pattern", b.cfg.tenantPattern()).
		Msg("redis bridge started")
	return nil
}

// Publish sends a message to the tenant's Redis channel.
func (b *RedisBridge) Publish(msg types.Message) error {
	data, err := b.encode(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(context.Background(), b.cfg.TenantChannel(msg.Tenant), data).Err()
}

// Stop unsubscribes and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *RedisBridge) listen(ctx context.Context, sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle([]byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

func (b *RedisBridge) encode(msg types.Message) ([]byte, error) {
	return json.Marshal(redisEnvelope{InstanceID: b.instanceID, Message: msg})
}

// handle decodes an envelope and forwards non-self messages to the hub.
func (b *RedisBridge) handle(payload []byte) {
	var env redisEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis message")
		return
	}

	if env.InstanceID == b.instanceID {
		return
	}
	if env.Message.Tenant == "" || env.Message.Envelope.Event == "" {
		b.logger.Debug().Str("from_instance", env.InstanceID).Msg("dropping incomplete message")
		return
	}

	b.logger.Debug().
		Str("from_instance", env.InstanceID).
		Str("tenant", env.Message.Tenant).
		Str("event", env.Message.Envelope.Event).
		Msg("relaying message from redis")

	b.hub.BroadcastToLocal(env.Message)
}
