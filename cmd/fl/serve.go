package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/farmlink/farmlink/internal/api"
	"github.com/farmlink/farmlink/internal/config"
	"github.com/farmlink/farmlink/internal/db"
	"github.com/farmlink/farmlink/internal/marketplace"
	"github.com/farmlink/farmlink/internal/notify"
	"github.com/farmlink/farmlink/internal/notify/discord"
	"github.com/farmlink/farmlink/internal/notify/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(g *globals) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the negotiation API server",
		Long: `Serves GET and PUT /negotiations/{id} and runs the idempotency key
janitor on its cron schedule. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, g *globals, port int) error {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g.log.Info("starting",
		zap.String("version", Version),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return api.Start(egCtx, api.StartOpts{
			RouterOpts: api.RouterOpts{
				DB:        gormDB,
				Logger:    g.log,
				Notifier:  notifier,
				RateLimit: cfg.Server.RateLimit,
			},
			Port: cfg.Server.Port,
		})
	})
	eg.Go(func() error {
		return marketplace.RunJanitor(egCtx, marketplace.JanitorOpts{
			DB:        gormDB,
			Schedule:  cfg.Idempotency.PurgeSchedule,
			Retention: cfg.Idempotency.Retention,
			Logger:    g.log,
		})
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped.")
	return nil
}

// buildNotifier returns a notifier for every enabled chat target.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var targets notify.Multi
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, n)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, n)
	}
	if len(targets) == 0 {
		return notify.Nop{}, nil
	}
	return targets, nil
}
