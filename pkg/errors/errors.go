package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNotAvailable      Code = "NOT_AVAILABLE"
	CodeDuplicateRequest  Code = "DUPLICATE_REQUEST"
	CodeAlreadyResolved   Code = "ALREADY_RESOLVED"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
	CodeOracleUnavailable Code = "ORACLE_UNAVAILABLE"
)

// Metadata is how a code surfaces at the HTTP boundary. Expected codes are
// ordinary outcomes such as lost races or duplicate submissions and are not
// logged as server faults.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	Expected       bool
}

// rejected builds metadata for a caller-facing outcome.
func rejected(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, Expected: true}
}

// failed builds metadata for a server-side failure the caller may retry.
func failed(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        rejected(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:      rejected(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:         rejected(http.StatusForbidden, "access denied", false),
	CodeNotFound:          rejected(http.StatusNotFound, "resource not found", false),
	CodeConflict:          rejected(http.StatusConflict, "conflict detected", false),
	CodeInvalidTransition: rejected(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeNotAvailable:      rejected(http.StatusConflict, "food item is not available", true),
	CodeDuplicateRequest:  rejected(http.StatusConflict, "a pending request already exists", true),
	CodeAlreadyResolved:   rejected(http.StatusConflict, "food item was already claimed", true),
	CodeIdempotency:       rejected(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:         rejected(http.StatusTooManyRequests, "rate limit exceeded", false),

	CodeInternal:          failed(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:        failed(http.StatusServiceUnavailable, "dependency unavailable", true),
	CodeOracleUnavailable: failed(http.StatusServiceUnavailable, "scoring service unavailable", false),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure. The message is internal unless the code is
// Expected; details reach the client only when the code allows them.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err degrades to New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// holds for any not-found error in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	e := As(err)
	return e != nil && e.code == code
}
