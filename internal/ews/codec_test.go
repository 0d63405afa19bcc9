package ews

import (
	"encoding/xml"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nhle/exchange-mail/internal/model"
)

func timePtr(t time.Time) *time.Time { return &t }
func boolPtr(b bool) *bool           { return &b }

func TestBuildFindItemReadFilter(t *testing.T) {
	tests := []struct {
		name        string
		isRead      *bool
		wantLiteral string
	}{
		{name: "read", isRead: boolPtr(true), wantLiteral: `<t:Constant Value="True">`},
		{name: "unread", isRead: boolPtr(false), wantLiteral: `<t:Constant Value="False">`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := BuildFindItem(nil, nil, tt.isRead)
			if err != nil {
				t.Fatalf("BuildFindItem: %v", err)
			}

			s := string(body)
			if !strings.Contains(s, "<t:IsEqualTo>") {
				t.Errorf("missing IsEqualTo restriction in %s", s)
			}
			if !strings.Contains(s, tt.wantLiteral) {
				t.Errorf("want literal %s in %s", tt.wantLiteral, s)
			}
		})
	}
}

func TestBuildFindItemNoFilter(t *testing.T) {
	body, err := BuildFindItem(nil, nil, nil)
	if err != nil {
		t.Fatalf("BuildFindItem: %v", err)
	}

	s := string(body)
	if strings.Contains(s, "Restriction") {
		t.Errorf("no filters given, want no Restriction element in %s", s)
	}
	if !strings.Contains(s, `Traversal="Shallow"`) {
		t.Errorf("missing Shallow traversal in %s", s)
	}
	if !strings.Contains(s, "<t:BaseShape>IdOnly</t:BaseShape>") {
		t.Errorf("missing IdOnly shape in %s", s)
	}
	if !strings.Contains(s, `<t:DistinguishedFolderId Id="inbox">`) {
		t.Errorf("missing inbox folder scope in %s", s)
	}
}

func TestBuildFindItemDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	body, err := BuildFindItem(timePtr(start), timePtr(end), nil)
	if err != nil {
		t.Fatalf("BuildFindItem: %v", err)
	}

	s := string(body)
	for _, want := range []string{
		"<t:And>",
		"<t:IsGreaterThanOrEqualTo>",
		"<t:IsLessThanOrEqualTo>",
		`<t:Constant Value="2024-01-01T00:00:00Z">`,
		`<t:Constant Value="2024-02-01T00:00:00Z">`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("want %s in %s", want, s)
		}
	}
}

func TestBuildFindItemLoneDateBoundIgnored(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, args := range map[string][2]*time.Time{
		"start only": {timePtr(start), nil},
		"end only":   {nil, timePtr(start)},
	} {
		t.Run(name, func(t *testing.T) {
			body, err := BuildFindItem(args[0], args[1], nil)
			if err != nil {
				t.Fatalf("BuildFindItem: %v", err)
			}
			if strings.Contains(string(body), "Restriction") {
				t.Errorf("lone date bound must be ignored, got %s", body)
			}
		})
	}
}

func TestBuildFindItemCombinesFilters(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	body, err := BuildFindItem(timePtr(start), timePtr(end), boolPtr(false))
	if err != nil {
		t.Fatalf("BuildFindItem: %v", err)
	}

	s := string(body)
	if !strings.Contains(s, "<t:IsEqualTo>") {
		t.Errorf("missing read filter in %s", s)
	}
	if !strings.Contains(s, "<t:IsGreaterThanOrEqualTo>") {
		t.Errorf("missing date filter in %s", s)
	}
	// Both conditions must sit under a combining And.
	if strings.Count(s, "<t:And>") != 2 {
		t.Errorf("want outer And around both conditions plus inner date And, got %s", s)
	}
}

func TestBuildGetItemSkipsMessagesWithoutID(t *testing.T) {
	messages := []model.Message{
		{ID: "AAA", ChangeKey: "CK1"},
		{Subject: "no id"},
		{ID: "BBB"},
	}

	body, err := BuildGetItem(messages)
	if err != nil {
		t.Fatalf("BuildGetItem: %v", err)
	}

	s := string(body)
	if !strings.Contains(s, `<t:ItemId Id="AAA" ChangeKey="CK1">`) {
		t.Errorf("missing item AAA with change key in %s", s)
	}
	if !strings.Contains(s, `<t:ItemId Id="BBB">`) {
		t.Errorf("item BBB must omit the empty ChangeKey attribute, got %s", s)
	}
	if strings.Count(s, "<t:ItemId") != 2 {
		t.Errorf("message without id must be skipped, got %s", s)
	}
	for _, field := range []string{"message:ToRecipients", "item:Body", "message:CcRecipients", "message:BccRecipients"} {
		if !strings.Contains(s, field) {
			t.Errorf("missing additional property %s in %s", field, s)
		}
	}
}

func TestBuildResolveNamesEscapesEntry(t *testing.T) {
	body, err := BuildResolveNames(`/O=ORG/CN=A&B<C`)
	if err != nil {
		t.Fatalf("BuildResolveNames: %v", err)
	}

	s := string(body)
	if !strings.Contains(s, `ReturnFullContactData="true"`) || !strings.Contains(s, `SearchScope="ActiveDirectory"`) {
		t.Errorf("missing request attributes in %s", s)
	}
	if !strings.Contains(s, "A&amp;B&lt;C") {
		t.Errorf("special characters must be escaped, got %s", s)
	}
}

func TestBuildUpdateItemRoundTrip(t *testing.T) {
	messages := []model.Message{
		{ID: "AAA", ChangeKey: "CK1"},
		{ID: "BBB", ChangeKey: "CK2"},
	}

	body, err := BuildUpdateItem(messages)
	if err != nil {
		t.Fatalf("BuildUpdateItem: %v", err)
	}

	s := string(body)
	if !strings.Contains(s, `MessageDisposition="SaveOnly"`) || !strings.Contains(s, `ConflictResolution="AutoResolve"`) {
		t.Errorf("missing update attributes in %s", s)
	}
	if !strings.Contains(s, "<t:IsRead>true</t:IsRead>") {
		t.Errorf("missing IsRead patch in %s", s)
	}

	// Re-parsing the emitted ItemId attributes yields the original
	// identities.
	var echo struct {
		IDs []struct {
			ID        string `xml:"Id,attr"`
			ChangeKey string `xml:"ChangeKey,attr"`
		} `xml:"ItemChanges>ItemChange>ItemId"`
	}
	if err := xml.Unmarshal(body, &echo); err != nil {
		t.Fatalf("re-parsing UpdateItem body: %v", err)
	}
	if len(echo.IDs) != 2 {
		t.Fatalf("want 2 item changes, got %d", len(echo.IDs))
	}
	for i, msg := range messages {
		if echo.IDs[i].ID != msg.ID || echo.IDs[i].ChangeKey != msg.ChangeKey {
			t.Errorf("change %d: got (%s, %s), want (%s, %s)",
				i, echo.IDs[i].ID, echo.IDs[i].ChangeKey, msg.ID, msg.ChangeKey)
		}
	}
}

func TestBuildEnvelope(t *testing.T) {
	env, err := BuildEnvelope([]byte("<m:FindItem></m:FindItem>"))
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}

	s := string(env)
	if !strings.HasPrefix(s, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Errorf("missing XML declaration in %s", s)
	}
	for _, want := range []string{
		`<t:RequestServerVersion Version="Exchange2013">`,
		`xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"`,
		`xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"`,
		`xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"`,
		"<soap:Body><m:FindItem></m:FindItem></soap:Body>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("want %s in %s", want, s)
		}
	}
}

// responseDoc wraps items in a realistic GetItem response envelope.
func responseDoc(items string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:GetItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
                       xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <m:ResponseMessages>
        <m:GetItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
          <m:Items>` + items + `</m:Items>
        </m:GetItemResponseMessage>
      </m:ResponseMessages>
    </m:GetItemResponse>
  </s:Body>
</s:Envelope>`)
}

const fullMessageXML = `
<t:Message>
  <t:ItemId Id="AAA" ChangeKey="CK1"/>
  <t:Subject>Quarterly report</t:Subject>
  <t:Body BodyType="Text">Please review.</t:Body>
  <t:IsRead>false</t:IsRead>
  <t:DateTimeSent>2024-01-01T10:00:00Z</t:DateTimeSent>
  <t:From><t:Mailbox><t:EmailAddress>alice@example.com</t:EmailAddress></t:Mailbox></t:From>
  <t:ToRecipients>
    <t:Mailbox><t:EmailAddress>bob@example.com</t:EmailAddress></t:Mailbox>
    <t:Mailbox><t:EmailAddress>bob@example.com</t:EmailAddress></t:Mailbox>
  </t:ToRecipients>
</t:Message>`

func TestParseMessagesFullShape(t *testing.T) {
	messages, err := ParseMessages(responseDoc(fullMessageXML), time.UTC)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if msg.ID != "AAA" || msg.ChangeKey != "CK1" {
		t.Errorf("identity: got (%s, %s)", msg.ID, msg.ChangeKey)
	}
	if msg.Subject != "Quarterly report" {
		t.Errorf("subject: got %q", msg.Subject)
	}
	if msg.TextBody != "Please review." {
		t.Errorf("text body: got %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("text body type must not populate HTMLBody, got %q", msg.HTMLBody)
	}
	if msg.IsRead {
		t.Error("is_read: want false")
	}

	wantSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !msg.DateTimeSent.Equal(wantSent) {
		t.Errorf("datetime_sent: got %v, want %v", msg.DateTimeSent, wantSent)
	}

	if msg.Author == nil || msg.Author.EmailAddress != "alice@example.com" {
		t.Errorf("author: got %+v", msg.Author)
	}
	if msg.From != msg.Author.EmailAddress {
		t.Errorf("from %q must mirror author %q", msg.From, msg.Author.EmailAddress)
	}

	// Server-returned duplicates are preserved as separate entries.
	wantTo := []string{"bob@example.com", "bob@example.com"}
	if !reflect.DeepEqual(msg.To, wantTo) {
		t.Errorf("to: got %v, want %v", msg.To, wantTo)
	}
	if len(msg.ToRecipients) != 2 {
		t.Errorf("to_recipients: got %d entries", len(msg.ToRecipients))
	}
}

func TestParseMessagesDropsIncompleteItems(t *testing.T) {
	items := `
<t:Message>
  <t:Subject>no item id</t:Subject>
  <t:DateTimeSent>2024-01-01T10:00:00Z</t:DateTimeSent>
</t:Message>
<t:Message>
  <t:ItemId Id="NO-SENT" ChangeKey="CK"/>
  <t:Subject>no timestamp</t:Subject>
</t:Message>
<t:Message>
  <t:ItemId Id="BAD-SENT" ChangeKey="CK"/>
  <t:DateTimeSent>yesterday-ish</t:DateTimeSent>
</t:Message>
<t:Message>
  <t:ItemId Id="KEEP" ChangeKey="CK"/>
  <t:DateTimeSent>2024-01-02T09:30:00Z</t:DateTimeSent>
</t:Message>`

	messages, err := ParseMessages(responseDoc(items), time.UTC)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "KEEP" {
		t.Fatalf("want only KEEP to survive, got %+v", messages)
	}

	msg := messages[0]
	if msg.Subject != "" || msg.TextBody != "" {
		t.Errorf("absent content fields must default to empty strings, got %+v", msg)
	}
	if msg.IsRead {
		t.Error("absent IsRead must default to false")
	}
	if msg.Author != nil || msg.From != "" {
		t.Errorf("absent From must leave author unset, got %+v", msg)
	}
}

func TestParseMessagesPreservesDocumentOrder(t *testing.T) {
	items := `
<t:Message><t:ItemId Id="1"/><t:DateTimeSent>2024-01-03T00:00:00Z</t:DateTimeSent></t:Message>
<t:Message><t:ItemId Id="2"/><t:DateTimeSent>2024-01-01T00:00:00Z</t:DateTimeSent></t:Message>
<t:Message><t:ItemId Id="3"/><t:DateTimeSent>2024-01-02T00:00:00Z</t:DateTimeSent></t:Message>`

	messages, err := ParseMessages(responseDoc(items), time.UTC)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}

	var ids []string
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "3"}) {
		t.Errorf("want document order, got %v", ids)
	}
}

func TestParseMessagesIdempotent(t *testing.T) {
	doc := responseDoc(fullMessageXML)

	first, err := ParseMessages(doc, time.UTC)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := ParseMessages(doc, time.UTC)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing twice differs: %+v vs %+v", first, second)
	}
}

func TestParseMessagesEmptyDocument(t *testing.T) {
	messages, err := ParseMessages(responseDoc(""), time.UTC)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("want empty slice, got %+v", messages)
	}
}

func TestParseMessagesMalformedXML(t *testing.T) {
	_, err := ParseMessages([]byte("<s:Envelope><unclosed"), time.UTC)
	if err == nil {
		t.Fatal("want error for malformed XML")
	}
	if !IsParseError(err) {
		t.Errorf("want ParseError, got %T: %v", err, err)
	}
}

func TestParseMessagesHTMLBody(t *testing.T) {
	items := `
<t:Message>
  <t:ItemId Id="H1" ChangeKey="CK"/>
  <t:Body BodyType="HTML">&lt;p&gt;hi&lt;/p&gt;</t:Body>
  <t:DateTimeSent>2024-01-01T10:00:00Z</t:DateTimeSent>
</t:Message>`

	messages, err := ParseMessages(responseDoc(items), time.UTC)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(messages))
	}
	if messages[0].HTMLBody != "<p>hi</p>" {
		t.Errorf("html body: got %q", messages[0].HTMLBody)
	}
}

func TestParseMessagesNaiveTimestampUsesLocation(t *testing.T) {
	items := `
<t:Message>
  <t:ItemId Id="N1" ChangeKey="CK"/>
  <t:DateTimeSent>2024-06-01T12:00:00</t:DateTimeSent>
</t:Message>`

	loc := time.FixedZone("UTC+2", 2*60*60)
	messages, err := ParseMessages(responseDoc(items), loc)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(messages))
	}

	want := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	if !messages[0].DateTimeSent.Equal(want) {
		t.Errorf("got %v, want %v", messages[0].DateTimeSent, want)
	}
}

func resolutionDoc(resolutions string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:ResolveNamesResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
                            xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <m:ResponseMessages>
        <m:ResolveNamesResponseMessage ResponseClass="Success">
          <m:ResolutionSet>` + resolutions + `</m:ResolutionSet>
        </m:ResolveNamesResponseMessage>
      </m:ResponseMessages>
    </m:ResolveNamesResponse>
  </s:Body>
</s:Envelope>`)
}

func TestParseResolutionPrefersSMTP(t *testing.T) {
	doc := resolutionDoc(`
<t:Resolution>
  <t:Mailbox>
    <t:Name>Legacy Entry</t:Name>
    <t:EmailAddress>/O=ORG/CN=USER</t:EmailAddress>
    <t:RoutingType>EX</t:RoutingType>
  </t:Mailbox>
</t:Resolution>
<t:Resolution>
  <t:Mailbox>
    <t:Name>User</t:Name>
    <t:EmailAddress>user@example.com</t:EmailAddress>
    <t:RoutingType>smtp</t:RoutingType>
  </t:Mailbox>
</t:Resolution>`)

	resolved, err := ParseResolution(doc)
	if err != nil {
		t.Fatalf("ParseResolution: %v", err)
	}
	if resolved != "user@example.com" {
		t.Errorf("got %q, want the later SMTP entry", resolved)
	}
}

func TestParseResolutionMissingRoutingTypeCounts(t *testing.T) {
	doc := resolutionDoc(`
<t:Resolution>
  <t:Mailbox>
    <t:EmailAddress>user@example.com</t:EmailAddress>
  </t:Mailbox>
</t:Resolution>`)

	resolved, err := ParseResolution(doc)
	if err != nil {
		t.Fatalf("ParseResolution: %v", err)
	}
	if resolved != "user@example.com" {
		t.Errorf("got %q", resolved)
	}
}

func TestParseResolutionNoEligibleEntry(t *testing.T) {
	tests := []struct {
		name string
		doc  []byte
	}{
		{name: "empty set", doc: resolutionDoc("")},
		{name: "no email address", doc: resolutionDoc(`<t:Resolution><t:Mailbox><t:Name>X</t:Name></t:Mailbox></t:Resolution>`)},
		{name: "non-smtp only", doc: resolutionDoc(`<t:Resolution><t:Mailbox><t:EmailAddress>/O=ORG/CN=U</t:EmailAddress><t:RoutingType>EX</t:RoutingType></t:Mailbox></t:Resolution>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ParseResolution(tt.doc)
			if err != nil {
				t.Fatalf("ParseResolution: %v", err)
			}
			if resolved != "" {
				t.Errorf("want no resolution, got %q", resolved)
			}
		})
	}
}
