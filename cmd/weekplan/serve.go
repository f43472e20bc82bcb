package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"weekplan/internal/api"
	"weekplan/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web API and the Telegram webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, client, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Heartbeat(ctx); err != nil {
				c.logger.Warn("failed to record scheduler heartbeat", zap.Error(err))
			}

			var bot *telegram.Bot
			if client != nil {
				bot = telegram.NewBot(a, client, c.logger)
				if c.cfg.TelegramWebhookURL != "" {
					if err := client.SetWebhook(c.cfg.TelegramWebhookURL); err != nil {
						return err
					}
				}
			} else {
				c.logger.Info("TELEGRAM_BOT_TOKEN not set, webhook disabled")
			}

			if c.cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", c.cfg.Port),
				Handler:           api.NewRouter(a, bot, c.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				c.logger.Info("server listening",
					zap.Int("port", c.cfg.Port),
					zap.String("git_sha", c.cfg.GitSHA),
					zap.String("week_start", a.WeekStart()),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				c.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
