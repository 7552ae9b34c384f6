package apperrors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services and transports
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// CustomError attaches a human readable message and details to one of the sentinels.
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

func New(err error, message string) *CustomError {
	return &CustomError{Err: err, Message: message}
}

func NotFound(format string, args ...interface{}) error {
	return &CustomError{Err: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func NotAuthorized(format string, args ...interface{}) error {
	return &CustomError{Err: ErrNotAuthorized, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &CustomError{Err: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &CustomError{Err: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...interface{}) error {
	return &CustomError{Err: ErrInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// LimitExceededError is returned when an institution has no free seat for a role.
type LimitExceededError struct {
	Role    string
	Current int
	Max     int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d)", e.Role, e.Current, e.Max)
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Is returns whether err matches target or any of errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Message returns the outermost CustomError message, or err.Error().
func Message(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}
