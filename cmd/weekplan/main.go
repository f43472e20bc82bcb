package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weekplan/internal/app"
	"weekplan/internal/config"
	"weekplan/internal/logging"
	"weekplan/internal/telegram"
)

type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "weekplan",
		Short:         "Weekly dinner plan with swaps and a shopping list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromEnv()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.planCmd(),
		c.swapCmd(),
		c.confirmCmd(),
		c.cancelCmd(),
		c.showCmd(),
		c.shopCmd(),
		c.tokenCmd(),
		c.metricsCmd(),
		c.metricsCleanupCmd(),
	)
	return root
}

// openApp wires the application. With a bot token the Telegram client is
// registered for push notifications.
func (c *cli) openApp(ctx context.Context) (*app.App, *telegram.Client, error) {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, nil, err
	}
	if c.cfg.TelegramBotToken == "" {
		return a, nil, nil
	}

	client, err := telegram.NewClient(c.cfg.TelegramBotToken, c.logger)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	a.SetNotifier(client)
	return a, client, nil
}

// withApp runs fn against a freshly wired application and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, _, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
