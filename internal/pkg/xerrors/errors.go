package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes, also used as the error type of API responses.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeValidation      = "validation_error"
	CodeAlreadyInState  = "already_in_state"
	CodeConflict        = "conflict"
	CodeInternal        = "internal_error"
)

var httpStatusMap = map[string]int{
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeValidation:      http.StatusBadRequest,
	CodeAlreadyInState:  http.StatusBadRequest,
	CodeConflict:        http.StatusConflict,
	CodeInternal:        http.StatusInternalServerError,
}

// Error is a domain error carrying a stable code.
type Error struct {
	Code    string
	Message string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) HTTPStatus() int {
	return httpStatusMap[e.Code]
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) *Error {
	return newError(CodeUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(CodeForbidden, format, args...)
}

// NotFound is also returned for records the caller may not see.
func NotFound(entity, id string) *Error {
	return newError(CodeNotFound, "%s %s not found", entity, id)
}

func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

// AlreadyInState is a validation error for a target that is already in the requested state.
func AlreadyInState(format string, args ...any) *Error {
	return newError(CodeAlreadyInState, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

// Wrap attaches a code to an underlying error.
func Wrap(code string, err error, format string, args ...any) *Error {
	e := newError(code, format, args...)
	e.cause = err

	return e
}

// CodeOf returns the code of err, CodeInternal when err is not a domain error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}

	var bulkErr *BulkError
	if errors.As(err, &bulkErr) {
		return CodeValidation
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return CodeInternal
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	return httpStatusMap[CodeOf(err)]
}

func IsUnauthenticated(err error) bool {
	return CodeOf(err) == CodeUnauthenticated
}

func IsForbidden(err error) bool {
	return CodeOf(err) == CodeForbidden
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation reports validation errors, AlreadyInState and bulk rejections included.
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == CodeValidation || code == CodeAlreadyInState
}

func IsAlreadyInState(err error) bool {
	return CodeOf(err) == CodeAlreadyInState
}
