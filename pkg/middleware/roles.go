package middleware

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RoleSource resolves the role names of a principal.
type RoleSource interface {
	GetRoleNames(ctx context.Context, username string) ([]string, error)
}

// RoleCache keeps resolved role names per session.
type RoleCache interface {
	Get(ctx context.Context, session string) ([]string, bool, error)
	Set(ctx context.Context, session string, roles []string) error
}

// Roles puts the principal's role names on the request context. Names are
// looked up once per session when cache is set. Requests without a principal
// get no roles.
func Roles(logger ectologger.Logger, source RoleSource, cache RoleCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Roles")
			defer span.End()

			roles := []string{}
			if principal := appctx.GetPrincipal(ctx); principal != "" {
				var err error
				if roles, err = resolveRoles(ctx, logger, source, cache, principal); err != nil {
					tracing.RecordError(span, err)
					return err
				}
			}

			c.SetRequest(c.Request().WithContext(appctx.SetRoles(c.Request().Context(), roles)))
			return next(c)
		}
	}
}

func resolveRoles(ctx context.Context, logger ectologger.Logger, source RoleSource, cache RoleCache, principal string) ([]string, error) {
	session := appctx.GetSessionID(ctx)
	if cache != nil && session != "" {
		roles, ok, err := cache.Get(ctx, session)
		if err != nil {
			logger.WithContext(ctx).WithError(err).Warn("role cache unavailable")
		} else if ok {
			return roles, nil
		}
	}

	roles, err := source.GetRoleNames(ctx, principal)
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("principal", principal).Error("failed to resolve roles")
		return nil, err
	}

	if cache != nil && session != "" {
		if err := cache.Set(ctx, session, roles); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("failed to cache roles")
		}
	}
	return roles, nil
}

// RequireRole rejects requests whose principal lacks role with 403.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !appctx.HasRole(c.Request().Context(), role) {
				return apperrors.Forbidden("requires role " + role)
			}
			return next(c)
		}
	}
}
