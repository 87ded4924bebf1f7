package dmapi

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by this package, including the one
// carried by a failed Response, matches exactly one of these with errors.Is.
var (
	// ErrNoAPIURL is returned when no Data Manager API URL has been configured.
	// No network I/O is attempted.
	ErrNoAPIURL = errors.New("no API URL defined")

	// ErrTransport is returned when the request could not be completed
	// (DNS, connection, TLS, timeout or cancellation).
	ErrTransport = errors.New("transport failure")

	// ErrUnexpectedStatus is returned when a response arrived with a status
	// code outside the set the operation accepts.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrInvalidArgument is returned when an operation is called with missing
	// or malformed arguments. Nothing is sent.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLocalFile is returned when a local file needed for a transfer is
	// missing or cannot be read or written.
	ErrLocalFile = errors.New("local file error")

	// ErrRealmMetadata is returned when the realm public key cannot be fetched
	// or parsed.
	ErrRealmMetadata = errors.New("realm metadata unavailable")

	// ErrTokenDecode is returned when a prior token fails signature
	// verification or carries no usable expiry claim.
	ErrTokenDecode = errors.New("token decode failed")

	// ErrTokenExchange is returned when the identity provider could not be
	// reached or refused the password grant.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrProtocol is returned when the identity provider answers with a body
	// that breaks its contract, such as a token response without access_token.
	ErrProtocol = errors.New("identity provider protocol violation")

	// ErrJobOperatorLookup is returned when the Job application record could
	// not be fetched.
	ErrJobOperatorLookup = errors.New("job operator lookup failed")

	// ErrNoJobOperator is returned when the Data Manager has no Job operator
	// installed, so Job instances cannot be started.
	ErrNoJobOperator = errors.New("no job operator installed")
)

// Error is the failure half of every outcome in this package.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	// Message is the human readable text, also used as the "error" entry of
	// a failed Response payload.
	Message string

	// StatusCode is the HTTP status of the response that caused the failure,
	// or zero when no response was received.
	StatusCode int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}
