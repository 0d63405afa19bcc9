package ews

import "encoding/xml"

// EWS namespace URIs. Request documents use the conventional prefixes
// soap/m/t; responses are matched by namespace, not prefix.
const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
)

// requestServerVersion pins the schema version in every envelope header.
const requestServerVersion = "Exchange2013"

// === Request documents (marshal side) ===
//
// These structs carry their namespace prefixes literally in the tag
// names; the envelope declares the prefixes once. encoding/xml escapes
// every interpolated value, which is the point of building the tree
// instead of templating strings.

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soap:Envelope"`
	XMLNSXSI  string     `xml:"xmlns:xsi,attr"`
	XMLNSM    string     `xml:"xmlns:m,attr"`
	XMLNST    string     `xml:"xmlns:t,attr"`
	XMLNSSoap string     `xml:"xmlns:soap,attr"`
	Header    soapHeader `xml:"soap:Header"`
	Body      soapBody   `xml:"soap:Body"`
}

type soapHeader struct {
	ServerVersion serverVersion `xml:"t:RequestServerVersion"`
}

type serverVersion struct {
	Version string `xml:"Version,attr"`
}

// soapBody holds an already-marshalled operation fragment verbatim.
type soapBody struct {
	Fragment []byte `xml:",innerxml"`
}

type findItemRequest struct {
	XMLName     xml.Name        `xml:"m:FindItem"`
	Traversal   string          `xml:"Traversal,attr"`
	ItemShape   itemShape       `xml:"m:ItemShape"`
	Restriction *restriction    `xml:"m:Restriction"`
	Parents     parentFolderIDs `xml:"m:ParentFolderIds"`
}

type itemShape struct {
	BaseShape  string     `xml:"t:BaseShape"`
	Additional []fieldURI `xml:"t:AdditionalProperties>t:FieldURI"`
}

type fieldURI struct {
	FieldURI string `xml:"FieldURI,attr"`
}

type parentFolderIDs struct {
	Distinguished distinguishedFolderID `xml:"t:DistinguishedFolderId"`
}

type distinguishedFolderID struct {
	ID string `xml:"Id,attr"`
}

// restriction wraps a single search expression; Expr is one of the
// expression structs below, named by its own XMLName.
type restriction struct {
	XMLName xml.Name `xml:"m:Restriction"`
	Expr    any
}

// comparison is a two-operand relational expression; XMLName selects the
// operator element (t:IsEqualTo, t:IsGreaterThanOrEqualTo, ...).
type comparison struct {
	XMLName  xml.Name
	FieldURI fieldURI           `xml:"t:FieldURI"`
	Operand  fieldURIOrConstant `xml:"t:FieldURIOrConstant"`
}

type fieldURIOrConstant struct {
	Constant constantValue `xml:"t:Constant"`
}

type constantValue struct {
	Value string `xml:"Value,attr"`
}

// andExpr combines sub-expressions with logical AND.
type andExpr struct {
	XMLName xml.Name `xml:"t:And"`
	Exprs   []any
}

type getItemRequest struct {
	XMLName   xml.Name  `xml:"m:GetItem"`
	ItemShape itemShape `xml:"m:ItemShape"`
	ItemIDs   []itemID  `xml:"m:ItemIds>t:ItemId"`
}

type itemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr,omitempty"`
}

type resolveNamesRequest struct {
	XMLName               xml.Name `xml:"m:ResolveNames"`
	ReturnFullContactData bool     `xml:"ReturnFullContactData,attr"`
	SearchScope           string   `xml:"SearchScope,attr"`
	UnresolvedEntry       string   `xml:"m:UnresolvedEntry"`
}

type updateItemRequest struct {
	XMLName            xml.Name     `xml:"m:UpdateItem"`
	MessageDisposition string       `xml:"MessageDisposition,attr"`
	ConflictResolution string       `xml:"ConflictResolution,attr"`
	Changes            []itemChange `xml:"m:ItemChanges>t:ItemChange"`
}

type itemChange struct {
	ItemID  itemID         `xml:"t:ItemId"`
	Updates []setItemField `xml:"t:Updates>t:SetItemField"`
}

type setItemField struct {
	FieldURI fieldURI     `xml:"t:FieldURI"`
	Message  messagePatch `xml:"t:Message"`
}

type messagePatch struct {
	IsRead bool `xml:"t:IsRead"`
}

// === Response documents (unmarshal side) ===
//
// Only the elements the parsers read are modelled; unqualified tag names
// match the local element names wherever the server nests them.

type xmlItemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

type xmlBody struct {
	BodyType string `xml:"BodyType,attr"`
	Text     string `xml:",chardata"`
}

type xmlMailbox struct {
	Name         string `xml:"Name"`
	EmailAddress string `xml:"EmailAddress"`
	RoutingType  string `xml:"RoutingType"`
}

type xmlFrom struct {
	Mailbox xmlMailbox `xml:"Mailbox"`
}

type xmlRecipients struct {
	Mailboxes []xmlMailbox `xml:"Mailbox"`
}

type xmlMessage struct {
	ItemID       *xmlItemID    `xml:"ItemId"`
	Subject      string        `xml:"Subject"`
	Body         *xmlBody      `xml:"Body"`
	IsRead       string        `xml:"IsRead"`
	DateTimeSent string        `xml:"DateTimeSent"`
	From         *xmlFrom      `xml:"From"`
	ToRecipients xmlRecipients `xml:"ToRecipients"`
}

type xmlResolution struct {
	Mailbox *xmlMailbox `xml:"Mailbox"`
}
