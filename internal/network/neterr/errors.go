package neterr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/gorilla/websocket"
)

// Kind classifies a failure by how it must be surfaced to scripts.
type Kind int

const (
	// KindValidation is a malformed or disallowed argument, raised synchronously.
	KindValidation Kind = iota
	// KindCapacity is a full resource group, raised synchronously.
	KindCapacity
	// KindTransport is a network failure, delivered as a failure event.
	KindTransport
	// KindPolicy is a size or address policy violation, delivered as a failure event.
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindTransport:
		return "transport"
	case KindPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// Error is a classified failure carrying the message shown to scripts.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Messages shown to scripts.
const (
	MsgURLMalformed       = "URL malformed"
	MsgMissingScheme      = "Must specify http or https"
	MsgUnknownHost        = "Unknown host"
	MsgDomainNotPermitted = "Domain not permitted"
	MsgBodyTooLarge       = "Request body is too large"
	MsgResponseTooLarge   = "Response is too large"
	MsgMessageTooLarge    = "Message is too large"
	MsgTimedOut           = "Timed out"
	MsgCouldNotConnect    = "Could not connect"
	MsgSecureConnection   = "Could not create a secure connection"
	MsgUnsupportedMethod  = "Unsupported HTTP method"
	MsgTooManyRequests    = "Too many ongoing HTTP requests"
	MsgTooManyChecks      = "Too many ongoing checkUrl calls"
	MsgTooManyWebsockets  = "Too many websockets already open"
	MsgTooManyMessages    = "Too many ongoing websocket messages"
	MsgWebsocketsDisabled = "Websocket connections are disabled"
	MsgWebsocketInactive  = "Websocket is inactive"
	MsgClosedHandle       = "attempt to use a closed file"
	MsgTimeoutOutOfRange  = "timeout out of range"
	MsgHTTPDisabled       = "HTTP is disabled"
)

// Sentinel errors for the fixed messages.
var (
	ErrURLMalformed       = Validation(MsgURLMalformed)
	ErrMissingScheme      = Validation(MsgMissingScheme)
	ErrUnsupportedMethod  = Validation(MsgUnsupportedMethod)
	ErrTimeoutOutOfRange  = Validation(MsgTimeoutOutOfRange)
	ErrHTTPDisabled       = Validation(MsgHTTPDisabled)
	ErrWebsocketsDisabled = Validation(MsgWebsocketsDisabled)
	ErrClosedHandle       = Validation(MsgClosedHandle)
	ErrTooManyRequests    = Capacity(MsgTooManyRequests)
	ErrTooManyChecks      = Capacity(MsgTooManyChecks)
	ErrTooManyWebsockets  = Capacity(MsgTooManyWebsockets)
	ErrTooManyMessages    = Capacity(MsgTooManyMessages)
	ErrUnknownHost        = Transport(MsgUnknownHost, nil)
	ErrDomainNotPermitted = Policy(MsgDomainNotPermitted)
	ErrBodyTooLarge       = Policy(MsgBodyTooLarge)
	ErrResponseTooLarge   = Policy(MsgResponseTooLarge)
	ErrMessageTooLarge    = Policy(MsgMessageTooLarge)
)

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf creates a formatted validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Capacity creates a capacity error.
func Capacity(msg string) *Error {
	return &Error{Kind: KindCapacity, Message: msg}
}

// Transport creates a transport error wrapping cause.
func Transport(msg string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Cause: cause}
}

// Policy creates a policy error.
func Policy(msg string) *Error {
	return &Error{Kind: KindPolicy, Message: msg}
}

// Panic wraps a value recovered from a panicking task as a transport failure.
func Panic(p any) *Error {
	return Transport(MsgCouldNotConnect, fmt.Errorf("panic: %v", p))
}

// KindOf returns the kind of err, treating unclassified errors as transport failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// Message returns the script-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return Friendly(err)
}

// Friendly maps a raw I/O error to a short human-readable message.
func Friendly(err error) string {
	if err == nil {
		return MsgCouldNotConnect
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}

	if isTimeout(err) {
		return MsgTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return MsgUnknownHost
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		return MsgMessageTooLarge
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return MsgCouldNotConnect
	}

	if isTLS(err) {
		return MsgSecureConnection
	}

	return MsgCouldNotConnect
}

// isTimeout looks for a timeout anywhere in the chain, since wrappers such
// as url.Error only report the timeout of their immediate cause.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
	}
	return false
}

func isTLS(err error) bool {
	var (
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		certErr    *tls.CertificateVerificationError
		unknownErr x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &certErr) ||
		errors.As(err, &unknownErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}
