package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/exchange-mail/internal/model"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	unreadStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// renderMessages prints a one-line-per-message listing of the mailbox.
func renderMessages(messages []model.Message) {
	if len(messages) == 0 {
		fmt.Println(subtleStyle.Render("no messages"))
		return
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf(
		"%-1s %-20s %-30s %s", "", "SENT", "FROM", "SUBJECT",
	)))

	for _, msg := range messages {
		marker := " "
		line := fmt.Sprintf(
			"%-20s %-30s %s",
			msg.DateTimeSent.Format("2006-01-02 15:04"),
			truncate(msg.From, 30),
			truncate(strings.ReplaceAll(msg.Subject, "\n", " "), 60),
		)
		if msg.IsRead {
			fmt.Println(marker + " " + line)
		} else {
			fmt.Println(unreadStyle.Render("*") + " " + unreadStyle.Render(line))
		}
	}
}

// truncate shortens s to at most max runes, never splitting a rune.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
