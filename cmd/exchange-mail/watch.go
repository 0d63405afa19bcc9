package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the mailbox into the local cache until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, mailbox, err := newMailbox(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		interval := time.Duration(cfg.PollIntervalSec) * time.Second
		window := time.Duration(cfg.FetchWindowDays) * 24 * time.Hour

		poller := sync.New(s, mailbox, interval, window)
		go poller.Run(ctx)

		slog.Info("watching mailbox", "interval", interval, "window", window)

		for {
			select {
			case <-ctx.Done():
				poller.Stop()
				fmt.Println()
				return nil
			case result := <-poller.Results():
				if result.Err != nil {
					slog.Error("sync failed", "err", result.Err)
					continue
				}
				slog.Info("synced",
					"fetched", result.Fetched,
					"new", result.NewCount,
					"at", result.At.Format(time.RFC3339),
				)
			}
		}
	},
}
