package problems

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Every kind except Internal is recoverable per
// request: the caller may retry with corrected input on the same connection.
type Kind int

const (
	Internal Kind = iota
	Authentication
	AuthenticationRequired
	Authorization
	Validation
	ProviderUnavailable
	Protocol
	BadRequest
)

// Error is the typed failure shared by the session protocol and the HTTP API.
type Error struct {
	Kind    Kind
	Message string
	// Scope is the missing permission for Authorization failures.
	Scope string
	Err   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Code is the short machine-readable identifier sent on the wire.
func (e *Error) Code() string { return e.Kind.Code() }

func (k Kind) Code() string {
	switch k {
	case Authentication:
		return "authentication_failed"
	case AuthenticationRequired:
		return "authentication_required"
	case Authorization:
		return "forbidden"
	case Validation:
		return "validation_failed"
	case ProviderUnavailable:
		return "provider_unavailable"
	case Protocol:
		return "protocol_error"
	case BadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// Status maps a kind onto the HTTP status used by the request/response API.
func (k Kind) Status() int {
	switch k {
	case Authentication, AuthenticationRequired:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case Validation, BadRequest, Protocol:
		return http.StatusBadRequest
	case ProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Unauthenticated(msg string) *Error { return &Error{Kind: Authentication, Message: msg} }

func AuthRequired() *Error {
	return &Error{Kind: AuthenticationRequired, Message: "Authentication required"}
}

// Forbidden reports a missing scope.
func Forbidden(scope string) *Error {
	return &Error{Kind: Authorization, Scope: scope, Message: fmt.Sprintf("Missing %s scope", scope)}
}

// Denied is an authorization failure that is not tied to a single scope.
func Denied(format string, args ...any) *Error {
	return &Error{Kind: Authorization, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: ProviderUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

func ProtocolErr(format string, args ...any) *Error {
	return &Error{Kind: Protocol, Message: fmt.Sprintf(format, args...)}
}

func Bad(format string, args ...any) *Error {
	return &Error{Kind: BadRequest, Message: fmt.Sprintf(format, args...)}
}

// As extracts the typed error from a chain.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns Internal for anything that is not a *Error.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return Internal
}
