package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/repository"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// UserTemplateRepository implements UserTemplateRepo
type UserTemplateRepository struct {
	*repository.GenericRepository[models.UserTemplate, *models.UserTemplate, int64]
	roles RoleRepo
}

// NewUserTemplateRepository creates a new user template repository
func NewUserTemplateRepository(db database.DB, roles RoleRepo, logger ectologger.Logger) (*UserTemplateRepository, error) {
	if roles == nil {
		return nil, apperrors.InvalidArgument("user template repository needs a role repository")
	}
	base, err := repository.New[models.UserTemplate, *models.UserTemplate, int64](db, models.UserTemplates, logger)
	if err != nil {
		return nil, err
	}
	return &UserTemplateRepository{GenericRepository: base, roles: roles}, nil
}

// GetByName returns the named template with its roles, or nil.
func (r *UserTemplateRepository) GetByName(ctx context.Context, name string) (*models.UserTemplate, error) {
	ctx, span := tracing.StartSpan(ctx, "UserTemplateRepository.GetByName")
	defer span.End()

	tmpl, err := r.GetUniqueByAttribute(ctx, "name", name)
	if err != nil || tmpl == nil {
		return tmpl, err
	}
	roles, err := r.roles.GetRolesForTemplate(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	tmpl.Roles = roles
	return tmpl, nil
}

// GetAutoAuthorize lists the templates applied without an administrator,
// ordered by name. Roles are not loaded.
func (r *UserTemplateRepository) GetAutoAuthorize(ctx context.Context) ([]models.UserTemplate, error) {
	ctx, span := tracing.StartSpan(ctx, "UserTemplateRepository.GetAutoAuthorize")
	defer span.End()

	return r.Query(ctx, query.Options{OrderBy: []query.Path{query.Attr("name"), query.Attr("id")}},
		query.Equals(query.Attr("auto_authorize"), true))
}
