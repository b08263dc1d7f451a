package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs it with the request
// context. A panic inside a ledger transaction has already rolled it back by
// the time it reaches here.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				rid, _ := c.Get(RequestIDKey).(string)
				req := c.Request()
				logger.Error().
					Str("request_id", rid).
					Str("user", auth.UserIDFromContext(req.Context())).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}()
			return next(c)
		}
	}
}
