package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every AppError wraps exactly one of these so callers can use errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Codes reported to API clients.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation reports input that breaks a model invariant.
func Validation(format string, args ...interface{}) *AppError {
	return NewAppError(CodeValidation, fmt.Sprintf(format, args...), ErrValidation)
}

func NotFound(format string, args ...interface{}) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflict reports a state clash: completing a completed record or opening a second
// open record for the same vehicle and rule.
func Conflict(format string, args ...interface{}) *AppError {
	return NewAppError(CodeConflict, fmt.Sprintf(format, args...), ErrConflict)
}

func Forbidden(format string, args ...interface{}) *AppError {
	return NewAppError(CodeForbidden, fmt.Sprintf(format, args...), ErrForbidden)
}

// CodeOf returns the API code for err, CodeInternal when it is not an AppError kind.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
