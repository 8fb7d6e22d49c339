package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/robodriver/internal/gateway"
	"github.com/rahul/robodriver/internal/observability"
	"github.com/rahul/robodriver/pkg/config"
)

const heartbeatInterval = 30 * time.Second

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept goals over HTTP, Telegram and Discord",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			observability.PrintBanner(cmd.OutOrStdout())
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	gw := a.cfg.Gateways
	dispatcher := gateway.NewDispatcher(a.runner, gw.HTTP.MaxConcurrentRuns, a.logger.Named("gateway"))

	g, ctx := errgroup.WithContext(ctx)
	started := 0

	if gw.HTTP.Enabled {
		srv := gateway.NewHTTPServer(gw.HTTP, dispatcher, a.modelErr == nil, a.logger.Named("http"))
		g.Go(func() error { return srv.Start(ctx) })
		started++
	}

	for _, m := range chatGateways(gw, dispatcher, a.logger) {
		g.Go(func() error { return m.Start(ctx) })
		started++
	}

	if started == 0 {
		a.logger.Warn("No gateway enabled; nothing to serve")
		return nil
	}

	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				observability.Heartbeat()
				a.events.LogHeartbeat()
			}
		}
	})

	a.logger.Info("Serving", zap.Int("gateways", started))
	err := g.Wait()
	a.logger.Info("Shut down")
	return err
}

// chatGateways builds every enabled chat gateway. One that fails to connect
// is logged and skipped so the others still serve.
func chatGateways(gw config.GatewaysConfig, dispatcher *gateway.Dispatcher, logger *zap.Logger) []gateway.Messenger {
	var out []gateway.Messenger

	if gw.Telegram.Enabled && gw.Telegram.Token != "" {
		tg, err := gateway.NewTelegramGateway(gw.Telegram.Token, dispatcher, logger.Named("telegram"))
		if err != nil {
			logger.Error("Telegram gateway disabled", zap.Error(err))
		} else {
			out = append(out, tg)
		}
	}

	if gw.Discord.Enabled && gw.Discord.Token != "" {
		dg, err := gateway.NewDiscordGateway(gw.Discord.Token, dispatcher, logger.Named("discord"))
		if err != nil {
			logger.Error("Discord gateway disabled", zap.Error(err))
		} else {
			out = append(out, dg)
		}
	}
	return out
}
