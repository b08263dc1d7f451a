package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ValidationError reports a missing or invalid input, including a target that
// does not exist. It is raised before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Is matches any ValidationError so callers can test with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NotFoundError reports a missing entity. A missing target is a validation
// failure, so it also matches ErrValidation.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

func (e *NotFoundError) Is(target error) bool {
	switch t := target.(type) {
	case *NotFoundError:
		return t.Entity == "" || e.Entity == t.Entity
	case *ValidationError:
		return true
	}
	return false
}

// InvalidTransitionError reports a status change the assignment state machine does not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	_, ok := target.(*InvalidTransitionError)
	return ok
}

// ConflictError reports a violated uniqueness invariant.
type ConflictError struct {
	Entity  string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s conflict: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("conflict: %s", e.Message)
}

func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

// RegenerationError wraps the cause of an aborted regeneration. The
// transaction has been rolled back when this error is returned.
type RegenerationError struct {
	Err error
}

func (e *RegenerationError) Error() string {
	return fmt.Sprintf("regeneration failed: %v", e.Err)
}

func (e *RegenerationError) Unwrap() error { return e.Err }

func (e *RegenerationError) Is(target error) bool {
	_, ok := target.(*RegenerationError)
	return ok
}

// TimeoutError reports that an operation exceeded its time bound.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Operation)
}

func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &ValidationError{}
	ErrNotFound          = &NotFoundError{}
	ErrInvalidTransition = &InvalidTransitionError{}
	ErrConflict          = &ConflictError{}
	ErrRegeneration      = &RegenerationError{}
	ErrTimeout           = &TimeoutError{}
)

func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func Conflict(entity, format string, args ...interface{}) error {
	return &ConflictError{Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// FromContext converts a context deadline into a TimeoutError for operation
// and returns err unchanged otherwise.
func FromContext(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation}
	}
	return err
}

// HTTPStatus maps an error from the taxonomy to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts err into an echo.HTTPError. Internal errors are not echoed
// back to the client.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}
