package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rescuehub/config"
	"rescuehub/logger"
	"rescuehub/tui"
	"rescuehub/utils"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and replay actions recorded while offline",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show pending actions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printQueue(cmd, a.queue.GetQueue())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard every pending action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n := len(a.queue.GetQueue())
				a.queue.ClearQueue()
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %d action(s)\n", n)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Replay pending actions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireOnline(ctx); err != nil {
					return err
				}
				// reaching the server already ran a pass
				r := a.monitor.Status().Last
				if r == nil {
					res, _ := a.monitor.Retry(ctx)
					r = &res
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d synced, %d failed, %d dropped, %d pending\n",
					r.Succeeded, r.Failed, r.Dropped, len(a.queue.GetQueue()))
				return nil
			})
		},
	})
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live sync status; replays automatically when the server comes back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
				return err
			}
			// the terminal belongs to the TUI
			closer, err := logger.InitFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closer.Close()
			logger.SetLevel("info")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, func(_ context.Context, a *app) error {
				events := make(chan bool)
				go a.prober.Run(ctx, events)
				return tui.NewSyncMonitor(a.monitor, a.queue, events).Run(ctx)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID uint
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token with the server's JWT settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			srv := config.NewConfig()
			srv.LoadFromEnvironment()
			if !srv.IsDevelopment() {
				return fmt.Errorf("token minting is only available when ENV is development")
			}
			tok, err := utils.GenerateAccessToken(utils.TokenConfig{
				Secret:   srv.JWTSecret,
				Audience: srv.JWTAud,
				Issuer:   srv.JWTIss,
			}, userID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "id", 0, "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
