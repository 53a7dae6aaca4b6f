// Package errors defines the error kinds surfaced by the integration bridge.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind,
// so handlers can map it to a response without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindAuthentication   Kind = "AuthenticationError"
	KindNotFound         Kind = "NotFoundError"
	KindArchived         Kind = "ArchivedIntegrationError"
	KindUpstream         Kind = "UpstreamError"
	KindConfiguration    Kind = "ConfigurationError"
	KindValidation       Kind = "ValidationError"
	KindStoreUnavailable Kind = "StoreUnavailableError"
	KindUnknown          Kind = "UnknownError"
)

// Error is a typed error value.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, which lets callers
// write errors.Is(err, errors.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrArchived         = &Error{Kind: KindArchived}
	ErrUpstream         = &Error{Kind: KindUpstream}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewAuthenticationError(message string) *Error {
	return New(KindAuthentication, message)
}

func NewNotFoundError(message string) *Error {
	return New(KindNotFound, message)
}

func NewArchivedIntegrationError(integrationID string) *Error {
	return Newf(KindArchived, "integration %s is archived", integrationID)
}

func NewUpstreamError(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func NewConfigurationError(message string) *Error {
	return New(KindConfiguration, message)
}

func NewValidationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func NewStoreUnavailableError(err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "credential store unavailable", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsAuthentication(err error) bool   { return KindOf(err) == KindAuthentication }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsArchived(err error) bool         { return KindOf(err) == KindArchived }
func IsUpstream(err error) bool         { return KindOf(err) == KindUpstream }
func IsConfiguration(err error) bool    { return KindOf(err) == KindConfiguration }
func IsValidation(err error) bool       { return KindOf(err) == KindValidation }
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }

// HTTPStatus maps an error to the status code returned to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindArchived:
		return http.StatusGone
	case KindUpstream:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
