package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/emotibot/metrics"
	"github.com/hupe1980/emotibot/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Warn("tracing shutdown failed", "error", err)
				}
			}()

			var (
				m        *metrics.Metrics
				gatherer prometheus.Gatherer
			)
			if cfg.Metrics.Enabled {
				m = metrics.Default()
				gatherer = prometheus.DefaultGatherer
			}

			bot, err := newBot(cfg, logger, m)
			if err != nil {
				return err
			}

			if cfg.Server.Debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := server.New(bot, func(o *server.Options) {
				o.Addr = cfg.Server.Addr
				o.CORS = cfg.Server.CORS
				o.Gatherer = gatherer
				o.Logger = logger.WithComponent("server")
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}
