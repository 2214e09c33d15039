// Command notifyd runs a notification relay: tenant sockets, the admin
// publish API and Prometheus metrics on one fasthttp listener.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("notifyd exited")
	}
}

func run(logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.RelayConfigFromEnv()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relay := providers.NewRelay(cfg, logger, reg)
	if err := relay.Activate(ctx); err != nil {
		return err
	}
	defer relay.Deactivate()

	srv := &fasthttp.Server{
		Handler:     relay.Handler(),
		Name:        "notifyd",
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 2 * time.Minute,
		Logger:      &fasthttpLogger{logger: logger},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("path", cfg.Path).Msg("listening")
		return srv.ListenAndServe(cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		// Close sockets first so hijacked connections do not hold Shutdown.
		_ = relay.Deactivate()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fasthttpLogger routes fasthttp's internal messages to zerolog.
type fasthttpLogger struct {
	logger zerolog.Logger
}

func (l *fasthttpLogger) Printf(format string, args ...any) {
	l.logger.Warn().Str("component", "fasthttp").Msgf(format, args...)
}
