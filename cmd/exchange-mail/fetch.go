package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/ews"
)

var (
	fetchStart  string
	fetchEnd    string
	fetchUnread bool
	fetchRead   bool
	fetchNoSave bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch Inbox messages from the server and cache them locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts, err := fetchOptions(location(cfg))
		if err != nil {
			return err
		}

		client, mailbox, err := newMailbox(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		messages, err := mailbox.GetMessages(cmd.Context(), opts)
		if err != nil {
			if ews.IsAuthError(err) {
				return fmt.Errorf("%w; run `exchange-mail login` to update it", err)
			}
			return err
		}

		if !fetchNoSave {
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.UpsertMessages(cmd.Context(), messages); err != nil {
				return err
			}
		}

		slog.Info("fetched messages", "count", len(messages))
		renderMessages(messages)
		return nil
	},
}

// fetchOptions converts the command flags into mailbox fetch options.
// A date bound given without its counterpart is ignored, matching the
// protocol layer's filter contract.
func fetchOptions(loc *time.Location) (ews.FetchOptions, error) {
	var opts ews.FetchOptions

	if fetchUnread && fetchRead {
		return opts, fmt.Errorf("--unread and --read are mutually exclusive")
	}
	if fetchUnread || fetchRead {
		isRead := fetchRead
		opts.IsRead = &isRead
	}

	start, err := parseFlagTime(fetchStart, loc)
	if err != nil {
		return opts, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseFlagTime(fetchEnd, loc)
	if err != nil {
		return opts, fmt.Errorf("invalid --end: %w", err)
	}

	if (start == nil) != (end == nil) {
		slog.Warn("date filter needs both --start and --end; ignoring the lone bound")
	} else {
		opts.Start = start
		opts.End = end
	}

	return opts, nil
}

// parseFlagTime accepts RFC 3339 timestamps or bare dates.
func parseFlagTime(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "only messages sent at or after this time (RFC 3339 or YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "only messages sent at or before this time (RFC 3339 or YYYY-MM-DD)")
	fetchCmd.Flags().BoolVar(&fetchUnread, "unread", false, "only unread messages")
	fetchCmd.Flags().BoolVar(&fetchRead, "read", false, "only read messages")
	fetchCmd.Flags().BoolVar(&fetchNoSave, "no-save", false, "skip updating the local cache")
}
