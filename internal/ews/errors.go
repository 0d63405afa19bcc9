package ews

import (
	"errors"
	"fmt"
)

// TransportError indicates a failed HTTP exchange with the server: a
// connection error, a timeout, or a non-2xx status. The call it belongs
// to is aborted; there is no automatic retry.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (%s): unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AuthError indicates the server rejected the credentials (HTTP 401).
type AuthError struct {
	Username string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (401): check the stored password for %s", e.Username)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ParseError indicates a response body that is not well-formed XML.
// Missing fields inside well-formed XML are never a ParseError; those
// items are silently excluded instead.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or any error in its chain) is a
// ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
