package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/repository"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RoleRepository implements RoleRepo
type RoleRepository struct {
	*repository.GenericRepository[models.Role, *models.Role, int64]
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db database.DB, logger ectologger.Logger) (*RoleRepository, error) {
	base, err := repository.New[models.Role, *models.Role, int64](db, models.Roles, logger)
	if err != nil {
		return nil, err
	}
	return &RoleRepository{GenericRepository: base}, nil
}

// GetRoleByName returns the role with the given name, or nil.
func (r *RoleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	ctx, span := tracing.StartSpan(ctx, "RoleRepository.GetRoleByName")
	defer span.End()

	return r.GetUniqueByAttribute(ctx, "name", name)
}

// GetDefaultRoles returns the roles every new account receives.
func (r *RoleRepository) GetDefaultRoles(ctx context.Context) ([]models.Role, error) {
	ctx, span := tracing.StartSpan(ctx, "RoleRepository.GetDefaultRoles")
	defer span.End()

	return r.Query(ctx, query.Options{OrderBy: []query.Path{query.Attr("id")}},
		query.Equals(query.Attr("default_role"), true))
}

func (r *RoleRepository) GetRolesForUser(ctx context.Context, userID int64) ([]models.Role, error) {
	ctx, span := tracing.StartSpan(ctx, "RoleRepository.GetRolesForUser")
	defer span.End()

	return r.GetListByPath(ctx, query.Via("users").Field("id"), userID)
}

func (r *RoleRepository) GetRolesForTemplate(ctx context.Context, templateID int64) ([]models.Role, error) {
	ctx, span := tracing.StartSpan(ctx, "RoleRepository.GetRolesForTemplate")
	defer span.End()

	return r.GetListByPath(ctx, query.Via("templates").Field("id"), templateID)
}

// GetRoleNames lists the role names held by username. An unknown user has
// no roles.
func (r *RoleRepository) GetRoleNames(ctx context.Context, username string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "RoleRepository.GetRoleNames")
	defer span.End()

	roles, err := r.GetListByPath(ctx, query.Via("users").Field("username"), username)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}
