package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repository"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// GroupRepository implements GroupRepo. Groups are historical: every
// description change keeps the previous version.
type GroupRepository struct {
	*repository.HistoricalRepository[models.Group, *models.Group, int64]
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db database.DB, logger ectologger.Logger, opts ...repository.HistoricalOption) (*GroupRepository, error) {
	base, err := repository.NewHistorical[models.Group, *models.Group, int64](db, models.Groups, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &GroupRepository{HistoricalRepository: base}, nil
}

// GetByName returns the current version of the named group, or nil.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	return r.GetCurrentByName(ctx, name)
}

// GetGroupHistory returns every version of the named group, oldest first.
func (r *GroupRepository) GetGroupHistory(ctx context.Context, name string) ([]models.Group, error) {
	return r.GetHistory(ctx, name)
}

// CreateGroup opens a new group. A group with the same name that is still
// current is a conflict.
func (r *GroupRepository) CreateGroup(ctx context.Context, name string, description *string) (*models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.CreateGroup")
	defer span.End()

	if name == "" {
		return nil, apperrors.InvalidArgument("group name is required")
	}
	current, err := r.GetCurrentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, apperrors.PreconditionFailed("group %q already exists", name)
	}

	created, err := r.Create(ctx, &models.Group{Name: name, Description: description})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.PreconditionFailed("group %q already exists", name)
		}
		return nil, err
	}
	return created, nil
}

// Describe replaces the description of the named group with a new version.
func (r *GroupRepository) Describe(ctx context.Context, name string, description *string) (*models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.Describe")
	defer span.End()

	current, err := r.GetCurrentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("group %q does not exist", name)
	}

	current.Description = description
	return r.UpdateCurrent(ctx, current)
}

// RemoveGroup expires the current version of the named group.
func (r *GroupRepository) RemoveGroup(ctx context.Context, name string) (*models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.RemoveGroup")
	defer span.End()

	current, err := r.GetCurrentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("group %q does not exist", name)
	}
	return r.Remove(ctx, current)
}
