package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Code is the machine-readable error identifier returned to API clients.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeDuplicateCode     Code = "duplicate_code"
	CodeInvalidTransition Code = "invalid_transition"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeValidation        Code = "validation_error"
	CodeStorage           Code = "storage_error"
)

// Error is the application error carried from repositories up to the HTTP layer.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code onto a response status.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Code)
}

// StatusFor returns the HTTP status used for code.
func StatusFor(code Code) int {
	switch code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeDuplicateCode, CodeInvalidTransition:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// New builds an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err. An empty message keeps the underlying error text.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func DuplicateCode(format string, args ...any) *Error {
	return New(CodeDuplicateCode, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(CodeInvalidTransition, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(CodeUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(CodeForbidden, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

// Storage wraps an infrastructure failure, passing the driver message through unchanged.
func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Err: err}
}

// CodeOf extracts the code from err, defaulting to storage_error for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeStorage
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
