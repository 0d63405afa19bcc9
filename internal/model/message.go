package model

import "time"

// Mailbox represents one addressable party on a message, a sender or a
// recipient. It carries no identity beyond the address string as the
// server returned it.
type Mailbox struct {
	EmailAddress string `json:"email_address"`
}

// Message is the normalized form of one Exchange mail item.
//
// ID and ChangeKey are EWS's compound identity: ID is a stable item
// handle, ChangeKey a server-side version token that must be sent back
// on any mutation of the item. Both are opaque and set together — the
// codec never produces a Message without them.
type Message struct {
	// ID is the server-assigned item identifier.
	ID string `json:"id"`

	// ChangeKey is the optimistic-concurrency token for this item
	// version. UpdateItem requests must include it.
	ChangeKey string `json:"change_key"`

	// Subject is the message subject, empty when the server omitted it.
	Subject string `json:"subject"`

	// TextBody is the message body text, empty when absent.
	TextBody string `json:"text_body"`

	// HTMLBody is the HTML rendering of the body when the server
	// returned one.
	HTMLBody string `json:"html_body,omitempty"`

	// DateTimeSent is when the message was sent. Items without it are
	// dropped during parsing, so this is always set on a parsed Message.
	DateTimeSent time.Time `json:"datetime_sent"`

	// IsRead reports whether the item is marked read on the server.
	IsRead bool `json:"is_read"`

	// From mirrors Author.EmailAddress for convenience; empty when the
	// sender is unknown.
	From string `json:"from,omitempty"`

	// To mirrors the addresses in ToRecipients; nil when there are none.
	To []string `json:"to,omitempty"`

	// Author is the sender mailbox, nil when the server returned none.
	Author *Mailbox `json:"author,omitempty"`

	// ToRecipients lists recipient mailboxes in server return order.
	// Duplicates returned by the server are preserved.
	ToRecipients []Mailbox `json:"to_recipients"`
}

// MarkAsReadRequest is the caller-facing payload for marking messages
// read by bare item id, without a fetched Message in hand.
type MarkAsReadRequest struct {
	IDs []string `json:"ids"`
}
