package repositories

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RoleRepo defines the interface for role repository operations
type RoleRepo interface {
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	Retrieve(ctx context.Context, id int64) (*models.Role, error)
	GetAll(ctx context.Context) ([]models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	GetDefaultRoles(ctx context.Context) ([]models.Role, error)
	GetRolesForUser(ctx context.Context, userID int64) ([]models.Role, error)
	GetRolesForTemplate(ctx context.Context, templateID int64) ([]models.Role, error)
	GetRoleNames(ctx context.Context, username string) ([]string, error)
}

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Retrieve(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByPrincipal(ctx context.Context, principal string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByRole(ctx context.Context, role string) ([]models.User, error)
	CreateUser(ctx context.Context, username string, roles []models.Role) (*models.User, error)
	GetRoleNames(ctx context.Context, username string) ([]string, error)
}

// UserTemplateRepo defines the interface for user template repository operations
type UserTemplateRepo interface {
	GetByName(ctx context.Context, name string) (*models.UserTemplate, error)
	GetAutoAuthorize(ctx context.Context) ([]models.UserTemplate, error)
}

// GroupRepo defines the interface for group repository operations
type GroupRepo interface {
	GetByName(ctx context.Context, name string) (*models.Group, error)
	GetGroupHistory(ctx context.Context, name string) ([]models.Group, error)
	CreateGroup(ctx context.Context, name string, description *string) (*models.Group, error)
	Describe(ctx context.Context, name string, description *string) (*models.Group, error)
	RemoveGroup(ctx context.Context, name string) (*models.Group, error)
}
