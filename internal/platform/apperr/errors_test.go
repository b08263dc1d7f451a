package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"validation", Validation("date", "required"), ErrValidation, true},
		{"wrapped validation", fmt.Errorf("create: %w", Validation("date", "required")), ErrValidation, true},
		{"conflict", Conflict("assignment", "duplicate"), ErrConflict, true},
		{"conflict is not validation", Conflict("assignment", "duplicate"), ErrValidation, false},
		{"transition", &InvalidTransitionError{From: "PUBLISHED", To: "PROPOSED"}, ErrInvalidTransition, true},
		{"timeout", &TimeoutError{Operation: "regeneration"}, ErrTimeout, true},
		{"not found any entity", NotFound("work unit"), ErrNotFound, true},
		{"not found same entity", NotFound("work unit"), &NotFoundError{Entity: "work unit"}, true},
		{"not found other entity", NotFound("work unit"), &NotFoundError{Entity: "staff"}, false},
		{"not found is a validation failure", NotFound("work unit"), ErrValidation, true},
		{"validation is not not found", Validation("x", "bad"), ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestRegenerationError_Unwrap(t *testing.T) {
	cause := Conflict("schedule entry", "duplicate override")
	err := &RegenerationError{Err: cause}

	assert.True(t, errors.Is(err, ErrRegeneration))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "duplicate override")
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := FromContext(ctx, "regeneration", ctx.Err())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	plain := errors.New("boom")
	assert.Equal(t, plain, FromContext(context.Background(), "regeneration", plain))
	assert.NoError(t, FromContext(context.Background(), "regeneration", nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("x", "bad")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("staff")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("x", "dup")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(&InvalidTransitionError{From: "A", To: "B"}))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(&TimeoutError{Operation: "x"}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestToHTTP(t *testing.T) {
	he, ok := ToHTTP(Validation("date", "required")).(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Contains(t, he.Message, "date")

	he, ok = ToHTTP(errors.New("pool exhausted")).(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, "internal error", he.Message)

	orig := echo.NewHTTPError(http.StatusTeapot, "tea")
	assert.Same(t, orig, ToHTTP(orig))
	assert.NoError(t, ToHTTP(nil))
}
