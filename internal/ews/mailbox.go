package ews

import (
	"context"
	"time"

	"github.com/nhle/exchange-mail/internal/model"
)

// Caller is the narrow transport surface the mailbox service needs.
// *Client satisfies it; tests substitute a fake.
type Caller interface {
	Call(ctx context.Context, soapAction string, fragment []byte) ([]byte, error)
	ResolveAddress(ctx context.Context, unresolvedEntry string) (string, error)
}

// FetchOptions filters a GetMessages call. A nil field means no
// restriction on that axis; Start and End only take effect together.
type FetchOptions struct {
	Start  *time.Time
	End    *time.Time
	IsRead *bool
}

// MailboxService composes the codec and a transport into the two
// user-facing mailbox workflows: fetching messages and marking them
// read. Calls are issued strictly sequentially over the shared session.
type MailboxService struct {
	caller Caller
	loc    *time.Location
}

// NewMailboxService creates a mailbox service over the given transport.
// loc interprets server timestamps that lack an explicit offset; nil
// means UTC.
func NewMailboxService(caller Caller, loc *time.Location) *MailboxService {
	if loc == nil {
		loc = time.UTC
	}
	return &MailboxService{caller: caller, loc: loc}
}

// GetMessages fetches Inbox messages matching opts.
//
// EWS spreads the fetch across round trips: FindItem lists identities,
// GetItem fetches full content for those ids, and a best-effort
// ResolveNames pass normalizes sender/recipient identifiers that
// arrived as legacy directory names instead of SMTP addresses. The
// whole fetch is all-or-nothing — a FindItem, GetItem, or parse
// failure returns an error and no partial result. Only the resolution
// pass degrades silently, leaving unresolvable addresses untouched.
func (s *MailboxService) GetMessages(ctx context.Context, opts FetchOptions) ([]model.Message, error) {
	fragment, err := BuildFindItem(opts.Start, opts.End, opts.IsRead)
	if err != nil {
		return nil, err
	}

	doc, err := s.caller.Call(ctx, ActionFindItem, fragment)
	if err != nil {
		return nil, err
	}

	found, err := ParseMessages(doc, s.loc)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []model.Message{}, nil
	}

	fragment, err = BuildGetItem(found)
	if err != nil {
		return nil, err
	}

	doc, err = s.caller.Call(ctx, ActionGetItem, fragment)
	if err != nil {
		return nil, err
	}

	// The GetItem shape is authoritative; it replaces, not merges with,
	// the FindItem results.
	messages, err := ParseMessages(doc, s.loc)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		s.resolveAddresses(ctx, &messages[i])
	}

	return messages, nil
}

// resolveAddresses rewrites the author and recipient addresses of one
// message through ResolveNames where a resolution succeeds. One call is
// issued per address instance, sequentially; misses and transport
// failures leave the original address in place.
func (s *MailboxService) resolveAddresses(ctx context.Context, msg *model.Message) {
	if msg.Author != nil && msg.Author.EmailAddress != "" {
		if resolved, err := s.caller.ResolveAddress(ctx, msg.Author.EmailAddress); err == nil && resolved != "" {
			msg.Author.EmailAddress = resolved
			msg.From = resolved
		}
	}

	for i := range msg.ToRecipients {
		addr := msg.ToRecipients[i].EmailAddress
		if addr == "" {
			continue
		}
		if resolved, err := s.caller.ResolveAddress(ctx, addr); err == nil && resolved != "" {
			msg.ToRecipients[i].EmailAddress = resolved
			if i < len(msg.To) {
				msg.To[i] = resolved
			}
		}
	}
}

// MarkAsRead marks the given messages as read on the server with a
// single UpdateItem call. Messages missing an id or change key are
// skipped; if none remain, no network call is made. The IsRead field of
// the passed-in values is left as fetched. The response carries nothing
// the client needs, but a malformed one still fails the call.
func (s *MailboxService) MarkAsRead(ctx context.Context, messages []model.Message) error {
	var updatable []model.Message
	for _, msg := range messages {
		if msg.ID != "" && msg.ChangeKey != "" {
			updatable = append(updatable, msg)
		}
	}
	if len(updatable) == 0 {
		return nil
	}

	fragment, err := BuildUpdateItem(updatable)
	if err != nil {
		return err
	}

	doc, err := s.caller.Call(ctx, ActionUpdateItem, fragment)
	if err != nil {
		return err
	}

	return ValidateResponse("UpdateItem", doc)
}
