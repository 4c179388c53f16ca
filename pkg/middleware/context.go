// Package middleware holds the echo middleware that carries request identity,
// logs requests, renders errors and resolves the caller's roles.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

const (
	// HeaderUserID is the header key for the authenticated principal
	HeaderUserID = "X-User-ID"
	// HeaderSessionID is the header key for the client session
	HeaderSessionID = "X-Session-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			// sessions without an id last one request
			sessionID := req.Header.Get(HeaderSessionID)
			if sessionID == "" {
				sessionID = requestID
			}

			ctx := context.WithRequest(req.Context(), context.Request{
				ID:        requestID,
				Session:   sessionID,
				Principal: req.Header.Get(HeaderUserID),
			})

			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
