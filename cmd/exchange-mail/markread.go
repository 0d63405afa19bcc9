package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/model"
)

var markReadCmd = &cobra.Command{
	Use:   "mark-read ID...",
	Short: "Mark messages as read on the server by item id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		// UpdateItem needs each item's change key, which only the cache
		// has for a bare id; uncached ids cannot be marked.
		req := model.MarkAsReadRequest{IDs: args}

		var messages []model.Message
		var marked []string
		for _, id := range req.IDs {
			msg, err := s.GetMessageByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if msg == nil || msg.ChangeKey == "" {
				slog.Warn("skipping id not in cache; fetch first", "id", id)
				continue
			}
			messages = append(messages, *msg)
			marked = append(marked, msg.ID)
		}

		if len(messages) == 0 {
			return fmt.Errorf("none of the given ids are in the cache")
		}

		client, mailbox, err := newMailbox(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := mailbox.MarkAsRead(cmd.Context(), messages); err != nil {
			return err
		}

		// The service leaves the input values untouched; reflect the
		// new server state in the cache explicitly.
		if err := s.MarkMessagesRead(cmd.Context(), marked); err != nil {
			return err
		}

		fmt.Println(summaryStyle.Render(fmt.Sprintf("marked %d message(s) read", len(marked))))
		return nil
	},
}
