package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Handlers and the
// stores below them stop at the deadline, and a handler that fails with
// context.DeadlineExceeded is answered with 504. Paths with one of the
// extended prefixes get the extended timeout, which chart rendering needs.
func RequestTimeout(timeout time.Duration, extended time.Duration, extendedPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := timeout
			if extended > 0 && hasAnySuffixSegment(c.Request().URL.Path, extendedPrefixes) {
				d = extended
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request processing exceeded the allowed time limit").SetInternal(err)
			}
			return err
		}
	}
}

// hasAnySuffixSegment reports whether path ends in one of the given segments,
// e.g. ".../export" or ".../download".
func hasAnySuffixSegment(path string, segments []string) bool {
	for _, s := range segments {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
