// Command notify-tail opens a notification channel for one tenant and logs
// every event it receives until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/bus"
	"github.com/orchestra-mcp/notify/src/client"
	"github.com/orchestra-mcp/notify/src/session"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.ClientConfigFromEnv()

	base := flag.String("base", cfg.BaseURL, "notification endpoint base URL")
	tenant := flag.String("session", "", "tenant id to subscribe as (derived from -token when empty)")
	token := flag.String("token", os.Getenv("NOTIFY_TOKEN"), "session token sent as a bearer header")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	identity := session.FromValue(*tenant)
	if !identity.Valid() && *token != "" {
		var err error
		if identity, err = session.FromToken(*token); err != nil {
			logger.Fatal().Err(err).Msg("cannot derive tenant from token")
		}
	}
	if !identity.Valid() {
		logger.Fatal().Msg("a -session or -token carrying a tenant claim is required")
	}

	b := bus.New(logger)
	b.On(types.Wildcard, func(p any) {
		env, ok := p.(types.Envelope)
		if !ok {
			return
		}
		logger.Info().Str("event", env.Event).Interface("payload", env.Payload).Msg("event")
	})

	m := client.New(b,
		client.NewWebSocketDialer(client.WithToken(*token)),
		client.WithBaseURL(*base),
		client.WithKeepalive(cfg.Keepalive),
		client.WithBackoff(cfg.BackoffBase, cfg.BackoffMax),
		client.WithLogger(logger),
	)
	cancel := m.Readiness().Subscribe(func(ready bool) {
		logger.Info().Bool("ready", ready).Msg("channel readiness changed")
	})
	defer cancel()

	m.Start()
	if err := m.SetSession(identity); err != nil {
		logger.Fatal().Err(err).Msg("set session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("closing channel")
	m.Close()
}
