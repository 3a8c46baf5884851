// Package domainerrors defines the error vocabulary shared by services and
// HTTP handlers. Services translate store sentinels and upstream failures
// into coded errors; handlers map codes onto HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	// CodeBadRequest covers malformed or unusable client input.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized covers credentials no user owns.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound covers missing resources.
	CodeNotFound Code = "not_found"
	// CodeSessionNotFound covers handoff tokens that are unknown, expired, or
	// already redeemed. Kept distinct from upstream errors: this is a client
	// usage problem (replay or timeout), not a provider failure.
	CodeSessionNotFound Code = "session_not_found"
	// CodeConflict covers unique-constraint violations.
	CodeConflict Code = "conflict"
	// CodeUpstream covers identity-provider rejections and non-responses.
	CodeUpstream Code = "upstream_error"
	// CodeProtocol covers provider responses we could not parse.
	CodeProtocol Code = "protocol_error"
	// CodeConfig covers missing or invalid configuration. Fatal at startup.
	CodeConfig Code = "config_error"
	// CodeInternal covers everything we did not anticipate.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a client-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	// UpstreamStatus holds the provider's HTTP status for CodeUpstream errors.
	UpstreamStatus int
	cause          error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and client-safe message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Upstream creates a CodeUpstream error carrying the provider's status code.
func Upstream(status int, message string) *Error {
	return &Error{Code: CodeUpstream, Message: message, UpstreamStatus: status}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message, defaulting to a generic one so
// raw error strings never leak to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HTTPStatus maps a coded error onto an HTTP status. Provider rejections
// surface as 400s because the mobile client treats them as terminal login
// failures, matching the callback contract.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSessionNotFound:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusBadRequest
	case CodeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
