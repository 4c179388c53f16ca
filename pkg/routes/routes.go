// Package routes serves roles, users and groups over HTTP behind the request
// context, logging, error and roles middleware.
package routes

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// AdminRole guards the role and user listings.
const AdminRole = "ADMIN"

type Handler struct {
	roles  repositories.RoleRepo
	users  repositories.UserRepo
	groups repositories.GroupRepo
}

func NewHandler(roles repositories.RoleRepo, users repositories.UserRepo, groups repositories.GroupRepo) *Handler {
	return &Handler{roles: roles, users: users, groups: groups}
}

// NewServer builds the echo instance. Request spans are named after service.
// cache may be nil, in which case roles are resolved on every request.
func NewServer(service string, logger ectologger.Logger, h *Handler, cache middleware.RoleCache) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(
		otelecho.Middleware(service),
		middleware.Context(),
		middleware.Logger(logger),
		middleware.Roles(logger, h.users, cache),
	)

	h.Register(e.Group("/api/v1"))
	return e
}

// Register registers the routes on g
func (h *Handler) Register(g *echo.Group) {
	g.GET("/me", h.Me)

	admin := middleware.RequireRole(AdminRole)
	g.GET("/roles", h.ListRoles, admin)
	g.GET("/users/:username", h.GetUser, admin)

	g.GET("/groups/:name", h.GetGroup)
	g.GET("/groups/:name/history", h.GetGroupHistory)
}

type meResponse struct {
	Principal string   `json:"principal"`
	Roles     []string `json:"roles"`
}

// Me returns the caller and the roles resolved for them.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, meResponse{
		Principal: appctx.GetPrincipal(ctx),
		Roles:     appctx.GetRoles(ctx),
	})
}

func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.roles.GetAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) GetUser(c echo.Context) error {
	username := c.Param("username")
	user, err := h.users.GetByUsername(c.Request().Context(), username)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("user %q does not exist", username)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) GetGroup(c echo.Context) error {
	name := c.Param("name")
	group, err := h.groups.GetByName(c.Request().Context(), name)
	if err != nil {
		return err
	}
	if group == nil {
		return apperrors.NotFound("group %q does not exist", name)
	}
	return c.JSON(http.StatusOK, group)
}

// GetGroupHistory lists every version of a group, oldest first.
func (h *Handler) GetGroupHistory(c echo.Context) error {
	history, err := h.groups.GetGroupHistory(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}
