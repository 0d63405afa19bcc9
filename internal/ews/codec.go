package ews

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/exchange-mail/internal/model"
)

// xmlDeclaration heads every request document.
const xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// findItemFields are the additional properties requested during the
// identity pass; enough to list and filter, no body or recipients.
var findItemFields = []fieldURI{
	{FieldURI: "item:Subject"},
	{FieldURI: "message:IsRead"},
	{FieldURI: "item:DateTimeSent"},
	{FieldURI: "message:From"},
}

// getItemFields are the additional properties requested when fetching
// full message content.
var getItemFields = []fieldURI{
	{FieldURI: "item:Subject"},
	{FieldURI: "message:IsRead"},
	{FieldURI: "item:DateTimeSent"},
	{FieldURI: "message:From"},
	{FieldURI: "message:ToRecipients"},
	{FieldURI: "message:CcRecipients"},
	{FieldURI: "message:BccRecipients"},
	{FieldURI: "item:Body"},
}

func typesName(local string) xml.Name {
	return xml.Name{Local: "t:" + local}
}

// ewsBool renders a boolean as the capitalized literal EWS expects in
// restriction constants ("True"/"False", never lowercase or 1/0).
func ewsBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// BuildEnvelope wraps an operation fragment in the shared SOAP envelope
// with the Exchange2013 version header. Every request goes through this
// exactly once.
func BuildEnvelope(fragment []byte) ([]byte, error) {
	env := soapEnvelope{
		XMLNSXSI:  "http://www.w3.org/2001/XMLSchema-instance",
		XMLNSM:    nsMessages,
		XMLNST:    nsTypes,
		XMLNSSoap: nsSoap,
		Header:    soapHeader{ServerVersion: serverVersion{Version: requestServerVersion}},
		Body:      soapBody{Fragment: fragment},
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling SOAP envelope: %w", err)
	}
	return append([]byte(xmlDeclaration), out...), nil
}

// BuildFindItem builds a FindItem request scoped to the Inbox. A read
// filter is applied when isRead is non-nil; a DateTimeSent range filter
// is applied only when both start and end are given — a lone bound is
// ignored. With no filter the Restriction element is omitted entirely.
func BuildFindItem(start, end *time.Time, isRead *bool) ([]byte, error) {
	var exprs []any

	if isRead != nil {
		exprs = append(exprs, comparison{
			XMLName:  typesName("IsEqualTo"),
			FieldURI: fieldURI{FieldURI: "message:IsRead"},
			Operand:  fieldURIOrConstant{Constant: constantValue{Value: ewsBool(*isRead)}},
		})
	}

	if start != nil && end != nil {
		exprs = append(exprs, andExpr{
			XMLName: typesName("And"),
			Exprs: []any{
				comparison{
					XMLName:  typesName("IsGreaterThanOrEqualTo"),
					FieldURI: fieldURI{FieldURI: "item:DateTimeSent"},
					Operand:  fieldURIOrConstant{Constant: constantValue{Value: start.Format(time.RFC3339)}},
				},
				comparison{
					XMLName:  typesName("IsLessThanOrEqualTo"),
					FieldURI: fieldURI{FieldURI: "item:DateTimeSent"},
					Operand:  fieldURIOrConstant{Constant: constantValue{Value: end.Format(time.RFC3339)}},
				},
			},
		})
	}

	req := findItemRequest{
		Traversal: "Shallow",
		ItemShape: itemShape{BaseShape: "IdOnly", Additional: findItemFields},
		Parents:   parentFolderIDs{Distinguished: distinguishedFolderID{ID: "inbox"}},
	}

	switch len(exprs) {
	case 0:
	case 1:
		req.Restriction = &restriction{Expr: exprs[0]}
	default:
		req.Restriction = &restriction{Expr: andExpr{XMLName: typesName("And"), Exprs: exprs}}
	}

	out, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling FindItem request: %w", err)
	}
	return out, nil
}

// BuildGetItem builds a GetItem request for the full content shape of
// the given messages. Messages without an id are skipped; the change
// key attribute is included when known.
func BuildGetItem(messages []model.Message) ([]byte, error) {
	req := getItemRequest{
		ItemShape: itemShape{BaseShape: "IdOnly", Additional: getItemFields},
	}
	for _, msg := range messages {
		if msg.ID == "" {
			continue
		}
		req.ItemIDs = append(req.ItemIDs, itemID{ID: msg.ID, ChangeKey: msg.ChangeKey})
	}

	out, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling GetItem request: %w", err)
	}
	return out, nil
}

// BuildResolveNames builds a ResolveNames request for one unresolved
// entry, typically a legacy X.500 distinguished name.
func BuildResolveNames(unresolvedEntry string) ([]byte, error) {
	req := resolveNamesRequest{
		ReturnFullContactData: true,
		SearchScope:           "ActiveDirectory",
		UnresolvedEntry:       unresolvedEntry,
	}

	out, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling ResolveNames request: %w", err)
	}
	return out, nil
}

// BuildUpdateItem builds an UpdateItem request that sets message:IsRead
// to true on every given message, addressed by (id, change key).
// SaveOnly keeps the server from re-sending anything; AutoResolve is
// acceptable for an idempotent boolean flag.
func BuildUpdateItem(messages []model.Message) ([]byte, error) {
	req := updateItemRequest{
		MessageDisposition: "SaveOnly",
		ConflictResolution: "AutoResolve",
	}
	for _, msg := range messages {
		req.Changes = append(req.Changes, itemChange{
			ItemID: itemID{ID: msg.ID, ChangeKey: msg.ChangeKey},
			Updates: []setItemField{{
				FieldURI: fieldURI{FieldURI: "message:IsRead"},
				Message:  messagePatch{IsRead: true},
			}},
		})
	}

	out, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling UpdateItem request: %w", err)
	}
	return out, nil
}

// ParseMessages extracts every Message element from a FindItem or
// GetItem response document, in document order. FindItem and GetItem
// share this parser since their item shapes overlap.
//
// Items without an item id or a parseable DateTimeSent are dropped, not
// defaulted: a message that cannot be mutated or ordered later does not
// count. A malformed document returns a *ParseError.
func ParseMessages(doc []byte, loc *time.Location) ([]model.Message, error) {
	messages := []model.Message{}

	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Op: "ParseMessages", Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Message" || se.Name.Space != nsTypes {
			continue
		}

		var item xmlMessage
		if err := dec.DecodeElement(&item, &se); err != nil {
			return nil, &ParseError{Op: "ParseMessages", Err: err}
		}

		if msg, ok := messageFromXML(item, loc); ok {
			messages = append(messages, msg)
		}
	}

	return messages, nil
}

// messageFromXML converts one decoded Message element into the
// normalized model, reporting false when required fields are missing.
func messageFromXML(item xmlMessage, loc *time.Location) (model.Message, bool) {
	if item.ItemID == nil || item.ItemID.ID == "" {
		return model.Message{}, false
	}
	sent, ok := parseEWSTime(item.DateTimeSent, loc)
	if !ok {
		return model.Message{}, false
	}

	msg := model.Message{
		ID:           item.ItemID.ID,
		ChangeKey:    item.ItemID.ChangeKey,
		Subject:      item.Subject,
		DateTimeSent: sent,
		IsRead:       strings.EqualFold(item.IsRead, "true"),
	}

	if item.Body != nil {
		msg.TextBody = item.Body.Text
		if strings.EqualFold(item.Body.BodyType, "HTML") {
			msg.HTMLBody = item.Body.Text
		}
	}

	if item.From != nil && item.From.Mailbox.EmailAddress != "" {
		msg.From = item.From.Mailbox.EmailAddress
		msg.Author = &model.Mailbox{EmailAddress: item.From.Mailbox.EmailAddress}
	}

	for _, mb := range item.ToRecipients.Mailboxes {
		msg.To = append(msg.To, mb.EmailAddress)
		msg.ToRecipients = append(msg.ToRecipients, model.Mailbox{EmailAddress: mb.EmailAddress})
	}

	return msg, true
}

// ParseResolution scans a ResolveNames response for the first resolved
// mailbox routable over SMTP. Entries with a non-SMTP routing type
// (e.g. EX legacy DNs) are skipped in favor of a later SMTP entry; a
// missing routing type counts as SMTP. Returns "" when nothing
// eligible is found.
func ParseResolution(doc []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	resolved := ""
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", &ParseError{Op: "ParseResolution", Err: err}
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Resolution" || se.Name.Space != nsTypes {
			continue
		}

		var res xmlResolution
		if err := dec.DecodeElement(&res, &se); err != nil {
			return "", &ParseError{Op: "ParseResolution", Err: err}
		}

		if res.Mailbox == nil || res.Mailbox.EmailAddress == "" {
			continue
		}
		if res.Mailbox.RoutingType != "" && !strings.EqualFold(res.Mailbox.RoutingType, "SMTP") {
			continue
		}
		if resolved == "" {
			resolved = res.Mailbox.EmailAddress
		}
	}

	return resolved, nil
}

// ValidateResponse checks that a response document is well-formed XML,
// returning a *ParseError when it is not. Operations whose response
// carries nothing the client reads back (UpdateItem) still fail the
// current call on a garbage body.
func ValidateResponse(op string, doc []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &ParseError{Op: op, Err: err}
		}
	}
}

// parseEWSTime interprets an EWS timestamp. A trailing Z is normalized
// to an explicit +00:00 offset; values with no offset at all are
// interpreted in the injected location.
func parseEWSTime(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(raw, "Z") {
		raw = strings.TrimSuffix(raw, "Z") + "+00:00"
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}

	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
