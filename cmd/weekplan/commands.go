package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"weekplan/internal/api"
	"weekplan/internal/app"
	"weekplan/internal/database"
	"weekplan/internal/metrics"
	"weekplan/internal/planner"
	"weekplan/internal/shopping"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(c.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func printWeek(w io.Writer, v app.WeekView) {
	fmt.Fprintln(w, v.Message)
	if v.Warning != "" {
		fmt.Fprintf(w, "\n⚠️ %s\n", v.Warning)
	}
}

func (c *cli) planCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a new plan for the current week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.BuildPlan(ctx, notify)
				if err != nil {
					return err
				}
				printWeek(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "send the plan to the last Telegram chat when auto_send_plan is on")
	return cmd
}

func (c *cli) swapCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "swap <days...>",
		Short:   "Preview new recipes for some days (e.g. swap 2 5 7 or swap di fr so)",
		Args:    cobra.MinimumNArgs(1),
		Example: "weekplan swap 2 5 7\nweekplan swap di fr so",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := planner.ParseSwapDays(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Swap(ctx, days, "cli")
				if err != nil {
					return err
				}
				printWeek(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func (c *cli) confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Apply the open swap preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Confirm(ctx)
				if err != nil {
					return err
				}
				printWeek(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the open swap preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Cancel(ctx)
				if err != nil {
					return err
				}
				printWeek(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the plan and the open preview of the current week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Current(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Woche ab %s\n\n", v.WeekStart)
				printWeek(w, v)
				if v.Draft != nil {
					fmt.Fprintf(w, "\n%s\n", v.Draft.Message)
				}
				return nil
			})
		},
	}
}

func (c *cli) shopCmd() *cobra.Command {
	var (
		mode   string
		notify bool
	)
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Print the shopping list of the current plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Shop(ctx, shopping.ParseMode(mode), notify)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, v.Message)
				if v.NotifyWarning != "" {
					fmt.Fprintf(w, "\n⚠️ %s\n", v.NotifyWarning)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(shopping.ModeConsolidated), "ai_consolidated or per_recipe")
	cmd.Flags().BoolVar(&notify, "notify", false, "send the list to the last Telegram chat when auto_send_shop is on")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := api.GenerateToken([]byte(c.cfg.JWTSecret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "web", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}

func (c *cli) metricsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print assistant usage and process health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				usage, err := a.Metrics().GetDailyUsage(ctx, days)
				if err != nil {
					return err
				}
				printMetrics(cmd.OutOrStdout(), usage, metrics.GetSysHealth(a.DataDir()))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to report")
	return cmd
}

func printMetrics(w io.Writer, usage []metrics.DailyUsage, health metrics.SysHealth) {
	fmt.Fprintln(w, "📊 Usage & Health Report")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "🗓 Recent assistant activity")
	if len(usage) == 0 {
		fmt.Fprintln(w, "No data yet")
	}
	for _, d := range usage {
		fmt.Fprintf(w, "• %s: %d tokens (%d execs, avg %dms)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.AvgLatencyMS)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "🧠 System health")
	fmt.Fprintf(w, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(w, "• Goroutines: %d\n", health.Goroutines)
	if health.DataDiskSize != "" {
		fmt.Fprintf(w, "• Disk Data: %s\n", health.DataDiskSize)
	}
}

func (c *cli) metricsCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old assistant metric records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				affected, err := a.Metrics().Cleanup(ctx, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "keep records for the last N days")
	return cmd
}
