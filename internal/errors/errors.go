package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so sentinels like
// ErrNotFound work with errors.Is through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Code == e.Code
}

// Is and As re-export the standard library helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of the
// innermost AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"

	// Connection failures
	CodeAuthFailure = "AUTH_FAILURE"
	CodeUnreachable = "UNREACHABLE"

	// Image fetch failures
	CodeUnavailable   = "UNAVAILABLE"
	CodeMalformedPath = "MALFORMED_PATH"
)

// Sentinels for errors.Is. They match any AppError with the same code.
var (
	ErrAuthFailure   = &AppError{Code: CodeAuthFailure}
	ErrUnreachable   = &AppError{Code: CodeUnreachable}
	ErrValidation    = &AppError{Code: CodeValidationError}
	ErrNotFound      = &AppError{Code: CodeNotFound}
	ErrUnavailable   = &AppError{Code: CodeUnavailable}
	ErrMalformedPath = &AppError{Code: CodeMalformedPath}
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// AuthFailure reports that credentials for a store could not be acquired.
func AuthFailure(store string, cause error) *AppError {
	return &AppError{
		Code:    CodeAuthFailure,
		Message: fmt.Sprintf("%s: credential acquisition failed", store),
		Cause:   cause,
	}
}

// Unreachable reports that a backing store could not be reached.
func Unreachable(store string, cause error) *AppError {
	return &AppError{
		Code:    CodeUnreachable,
		Message: fmt.Sprintf("%s: store unreachable", store),
		Cause:   cause,
	}
}

// Unavailable reports a transient object store or cache failure.
func Unavailable(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: message,
		Cause:   cause,
	}
}

func MalformedPath(path, reason string) *AppError {
	return New(CodeMalformedPath, fmt.Sprintf("malformed image path %q: %s", path, reason))
}

func IsAuthFailure(err error) bool   { return stderrors.Is(err, ErrAuthFailure) }
func IsUnreachable(err error) bool   { return stderrors.Is(err, ErrUnreachable) }
func IsValidation(err error) bool    { return stderrors.Is(err, ErrValidation) }
func IsNotFound(err error) bool      { return stderrors.Is(err, ErrNotFound) }
func IsUnavailable(err error) bool   { return stderrors.Is(err, ErrUnavailable) }
func IsMalformedPath(err error) bool { return stderrors.Is(err, ErrMalformedPath) }

// IsConnectionError reports whether err came from acquiring a store handle.
func IsConnectionError(err error) bool {
	return IsAuthFailure(err) || IsUnreachable(err)
}

// HTTPStatus maps an error code to the status the API adapter answers with.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err), IsMalformedPath(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsAuthFailure(err):
		return http.StatusBadGateway
	case IsUnreachable(err), IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
