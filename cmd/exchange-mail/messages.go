package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/exchange-mail/internal/store"
)

var (
	messagesUnread bool
	messagesLimit  int
	messagesShow   string
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List cached messages without contacting the server",
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

		if messagesShow != "" {
			msg, err := s.GetMessageByID(cmd.Context(), messagesShow)
			if err != nil {
				return err
			}
			if msg == nil {
				return fmt.Errorf("message %s is not in the cache", messagesShow)
			}

			fmt.Println(headerStyle.Render(msg.Subject))
			fmt.Println(subtleStyle.Render(fmt.Sprintf(
				"From %s, sent %s", msg.From, msg.DateTimeSent.Format("2006-01-02 15:04"),
			)))
			fmt.Println()
			fmt.Println(msg.TextBody)
			return nil
		}

		filter := store.MessageFilter{Limit: messagesLimit}
		if messagesUnread {
			isRead := false
			filter.IsRead = &isRead
		}

		messages, err := s.GetMessages(cmd.Context(), filter)
		if err != nil {
			return err
		}

		renderMessages(messages)
		return nil
	},
}

func init() {
	messagesCmd.Flags().BoolVar(&messagesUnread, "unread", false, "only unread messages")
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 50, "maximum messages to list")
	messagesCmd.Flags().StringVar(&messagesShow, "show", "", "print the full body of one cached message id")
}
