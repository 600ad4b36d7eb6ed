// Package errors provides coded domain errors for the ingestion pipeline.
//
// Usage:
//
//	// In pipelines - return typed errors
//	if len(chapters) == 0 {
//	    return nil, errors.NoChaptersFound("archive contains no complete chapter triples")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrFormat) {
//	    // reject the submission, nothing was persisted
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"

	// Ingestion taxonomy.
	CodeFormat    Code = "FORMAT"
	CodeSynthesis Code = "SYNTHESIS"
	CodeStorage   Code = "STORAGE"
	CodeState     Code = "STATE"
)

// Format failure reasons carried in Error.Details.
const (
	ReasonNoChaptersFound        = "no_chapters_found"
	ReasonMissingContainer       = "missing_container"
	ReasonMissingPackageDocument = "missing_package_document"
	ReasonMalformedXML           = "malformed_xml"
	ReasonCorruptArchive         = "corrupt_archive"
	ReasonUnrecognized           = "unrecognized_submission"
	ReasonPairingMismatch        = "pairing_mismatch"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeState:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeFormat:
		return http.StatusUnprocessableEntity
	case CodeSynthesis:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus returns the HTTP status, letting HTTP frameworks that look for
// a status-carrying error map domain errors directly.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// Reason returns the Details value when it is a reason string.
func (e *Error) Reason() string {
	if s, ok := e.Details.(string); ok {
		return s
	}
	return ""
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
	ErrFormat        = &Error{Code: CodeFormat, Message: "unrecognized or malformed submission"}
	ErrSynthesis     = &Error{Code: CodeSynthesis, Message: "speech synthesis failed"}
	ErrStorage       = &Error{Code: CodeStorage, Message: "storage failure"}
	ErrState         = &Error{Code: CodeState, Message: "invalid status transition"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Format creates a format error.
func Format(msg string) *Error {
	return &Error{Code: CodeFormat, Message: msg}
}

// Formatf creates a format error with formatted message.
func Formatf(format string, args ...any) *Error {
	return &Error{Code: CodeFormat, Message: fmt.Sprintf(format, args...)}
}

// NoChaptersFound reports an archive without a single complete chapter triple.
func NoChaptersFound(msg string) *Error {
	return &Error{Code: CodeFormat, Message: msg, Details: ReasonNoChaptersFound}
}

// MissingContainer reports an EPUB without META-INF/container.xml.
func MissingContainer(msg string) *Error {
	return &Error{Code: CodeFormat, Message: msg, Details: ReasonMissingContainer}
}

// MissingPackageDocument reports a container that does not lead to an OPF file.
func MissingPackageDocument(msg string) *Error {
	return &Error{Code: CodeFormat, Message: msg, Details: ReasonMissingPackageDocument}
}

// MalformedXML reports an EPUB document that failed to parse.
func MalformedXML(doc string, err error) *Error {
	return &Error{Code: CodeFormat, Message: "malformed " + doc, Details: ReasonMalformedXML, cause: err}
}

// Synthesis creates a synthesis error.
func Synthesis(msg string) *Error {
	return &Error{Code: CodeSynthesis, Message: msg}
}

// Synthesisf creates a synthesis error with formatted message.
func Synthesisf(format string, args ...any) *Error {
	return &Error{Code: CodeSynthesis, Message: fmt.Sprintf(format, args...)}
}

// Storage creates a storage error.
func Storage(msg string) *Error {
	return &Error{Code: CodeStorage, Message: msg}
}

// Storagef creates a storage error with formatted message.
func Storagef(format string, args ...any) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf(format, args...)}
}

// State creates a state transition error.
func State(msg string) *Error {
	return &Error{Code: CodeState, Message: msg}
}

// Statef creates a state transition error with formatted message.
func Statef(format string, args ...any) *Error {
	return &Error{Code: CodeState, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
