// Package errkit defines the error taxonomy shared by every aerokit
// subsystem: protocol framing, transport I/O, pool exhaustion, non-zero
// server results, deadline expiry, bad configuration and failed
// authentication. Every constructor wraps an inner cause with fmt.Errorf's
// %w verb so callers can still errors.Is/As through to the original error.
package errkit

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of the command executor's retry
// policy (spec §7): Protocol/ServerResult/Timeout/Configuration/Authentication
// are terminal, IO/PoolExhausted are retried up to the policy's bound.
type Kind int

const (
	Protocol Kind = iota
	IO
	PoolExhausted
	ServerResult
	Timeout
	Configuration
	Authentication
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case IO:
		return "io"
	case PoolExhausted:
		return "pool_exhausted"
	case ServerResult:
		return "server_result"
	case Timeout:
		return "timeout"
	case Configuration:
		return "configuration"
	case Authentication:
		return "authentication"
	default:
		return "unknown"
	}
}

// Error is the concrete error type produced by every constructor below.
type Error struct {
	Kind    Kind
	Message string
	Code    ResultCode // only meaningful when Kind == ServerResult
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the command executor's retry loop should attempt
// another iteration for an error of this kind (spec §7 propagation policy).
func (e *Error) Retryable() bool {
	return e.Kind == IO || e.Kind == PoolExhausted
}

func wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewProtocol(message string, cause error) error       { return wrap(Protocol, message, cause) }
func NewIO(message string, cause error) error              { return wrap(IO, message, cause) }
func NewPoolExhausted(message string) error                { return wrap(PoolExhausted, message, nil) }
func NewTimeout(message string) error                      { return wrap(Timeout, message, nil) }
func NewConfiguration(message string, cause error) error   { return wrap(Configuration, message, cause) }
func NewAuthentication(message string, cause error) error  { return wrap(Authentication, message, cause) }

// NewServerResult builds a ServerResult error carrying the wire result code.
func NewServerResult(code ResultCode) error {
	return &Error{Kind: ServerResult, Message: code.String(), Code: code}
}

// IsKeyNotFound reports whether err is the one ServerResult code that spec §7
// treats as a normal (non-fatal, non-connection-closing) outcome.
func IsKeyNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ServerResult && e.Code == KeyNotFound
	}
	return false
}
