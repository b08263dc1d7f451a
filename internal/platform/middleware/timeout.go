package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/platform/apperr"
)

// RequestTimeout bounds each request by timeout. On expiry the request fails
// with a TimeoutError (504) naming the route. Routes for which skip returns
// true manage their own deadline.
func RequestTimeout(timeout time.Duration, skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || (skip != nil && skip(c)) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					// Client went away.
					return ctx.Err()
				}
				if c.Response().Committed {
					return nil
				}
				route := c.Path()
				if route == "" {
					route = c.Request().URL.Path
				}
				return apperr.ToHTTP(&apperr.TimeoutError{Operation: c.Request().Method + " " + route})
			}
		}
	}
}
