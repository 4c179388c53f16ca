package middleware

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

// Logger writes one line per request once the handler and error rendering
// have run. Server errors log at error level.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			ctx := c.Request().Context()
			req := context.RequestFrom(ctx)
			status := c.Response().Status
			entry := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":  req.ID,
				"session_id":  req.Session,
				"principal":   req.Principal,
				"roles":       context.GetRoles(ctx),
				"method":      c.Request().Method,
				"route":       c.Path(),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       c.Response().Size,
			})
			if status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Info("request")
			}
			return nil
		}
	}
}
