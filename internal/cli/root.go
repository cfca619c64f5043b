package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alexanderramin/noise/internal/config"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/discord"
	"github.com/alexanderramin/noise/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	storePath  string
	backend    string
	logLevel   string
}

func (g *globalFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("global", pflag.ContinueOnError)
	fs.StringVar(&g.configPath, "config", os.Getenv("NOISE_CONFIG"), "Path to noise.yaml")
	fs.StringVar(&g.storePath, "store", "", "Override the member store path")
	fs.StringVar(&g.backend, "backend", "", "Override the store backend (sqlite|file)")
	fs.StringVar(&g.logLevel, "log-level", "", "Override the log level")
	return fs
}

// load reads the config and applies flag overrides on top of it.
func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.storePath != "" {
		cfg.Store.Path = g.storePath
	}
	if g.backend != "" {
		cfg.Store.Backend = g.backend
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// sinkFactory picks where deliveries go once the config is known.
type sinkFactory func(cfg config.Config) (delivery.Sink, error)

func consoleSink(w io.Writer) sinkFactory {
	return func(config.Config) (delivery.Sink, error) {
		return delivery.NewConsoleSink(w), nil
	}
}

// discordOrConsole posts through the Discord REST API when a token is
// configured, and prints to w otherwise.
func discordOrConsole(w io.Writer) sinkFactory {
	return func(cfg config.Config) (delivery.Sink, error) {
		if cfg.Discord.Token == "" {
			return delivery.NewConsoleSink(w), nil
		}
		session, err := discord.NewSession(cfg.Discord.Token)
		if err != nil {
			return nil, err
		}
		return discord.NewSink(session), nil
	}
}

// openApp loads config, builds the logger and wires the core.
func (g *globalFlags) openApp(ctx context.Context, makeSink sinkFactory) (*App, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	sink, err := makeSink(cfg)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	app, err := NewApp(ctx, cfg, log, sink)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("starting noise: %w", err)
	}
	return app, nil
}

func closeApp(ctx context.Context, app *App) {
	if err := app.Close(context.WithoutCancel(ctx)); err != nil {
		app.Log.Warn("shutdown incomplete", zap.Error(err))
	}
	_ = app.Log.Sync()
}

// NewRootCmd creates the top-level "noise" command.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "noise",
		Short:         "Community bot that connects members' thoughts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddFlagSet(g.flagSet())

	root.AddCommand(
		newServeCmd(g),
		newConsoleCmd(g),
		newTickCmd(g),
		newMemberCmd(g),
	)
	return root
}
