package cli

import (
	"context"
	"errors"

	"github.com/alexanderramin/noise/internal/config"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/discord"
	"github.com/alexanderramin/noise/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var echo bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Discord.Token == "" {
				return errors.New("discord token is required (NOISE_DISCORD_TOKEN)")
			}
			session, err := discord.NewSession(cfg.Discord.Token)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := g.openApp(ctx, func(config.Config) (delivery.Sink, error) {
				var sink delivery.Sink = discord.NewSink(session)
				if echo {
					sink = delivery.MultiSink{sink, delivery.NewConsoleSink(cmd.OutOrStdout())}
				}
				return sink, nil
			})
			if err != nil {
				return err
			}
			defer closeApp(ctx, app)

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return discord.NewGateway(session, app.Router, app.Log).Run(ctx)
			})
			eg.Go(func() error { return app.Scheduler.Run(ctx) })
			eg.Go(func() error { return app.WatchConfig(ctx, g.configPath) })
			if app.Config.Metrics.Addr != "" {
				eg.Go(func() error {
					return metrics.NewServer(app.Config.Metrics.Addr, app.Metrics, app.Log).Run(ctx)
				})
			}
			if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "Also print every delivery to stdout")
	return cmd
}
