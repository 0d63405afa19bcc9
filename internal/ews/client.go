package ews

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ewsPath is the fixed EWS endpoint path on every Exchange server.
const ewsPath = "/EWS/Exchange.asmx"

// SOAPAction header values, one per operation.
const (
	ActionFindItem     = nsMessages + "/FindItem"
	ActionGetItem      = nsMessages + "/GetItem"
	ActionResolveNames = nsMessages + "/ResolveNames"
	ActionUpdateItem   = nsMessages + "/UpdateItem"
)

// callTimeout bounds each individual SOAP call. There is no overall
// workflow deadline beyond what the caller's context imposes.
const callTimeout = 10 * time.Second

// Client owns one HTTP session against an Exchange server and speaks
// EWS SOAP over it with basic authentication. It is the transport half
// of the protocol adapter; the codec builds and parses the payloads.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates an EWS client for the server at baseURL
// (e.g. https://mail.corp.example.com). Close must be called exactly
// once when the client is no longer needed.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: callTimeout,
		},
	}
}

// Close releases the underlying HTTP session. No calls are valid on
// the client afterwards.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Call wraps an operation fragment in the shared SOAP envelope, POSTs
// it to the EWS endpoint with the given SOAPAction, and returns the raw
// response document. Connection errors, timeouts, and non-2xx statuses
// return a *TransportError (401 a *AuthError); the response body is
// returned unparsed for the codec.
func (c *Client) Call(ctx context.Context, soapAction string, fragment []byte) ([]byte, error) {
	envelope, err := BuildEnvelope(fragment)
	if err != nil {
		return nil, err
	}

	op := soapAction[strings.LastIndex(soapAction, "/")+1:]

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+ewsPath, bytes.NewReader(envelope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Username: c.username}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	return body, nil
}

// ResolveAddress resolves a legacy distinguished name (legacyDN/X.500)
// or other ambiguous identifier to an SMTP address via ResolveNames.
// Not finding a match is not an error: the result is simply empty. Only
// transport and protocol failures return a non-nil error.
func (c *Client) ResolveAddress(ctx context.Context, unresolvedEntry string) (string, error) {
	fragment, err := BuildResolveNames(unresolvedEntry)
	if err != nil {
		return "", err
	}

	doc, err := c.Call(ctx, ActionResolveNames, fragment)
	if err != nil {
		return "", err
	}

	return ParseResolution(doc)
}
