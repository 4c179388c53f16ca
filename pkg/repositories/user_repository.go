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

// UserRepository implements UserRepo. Users returned by the lookups carry
// their roles.
type UserRepository struct {
	*repository.GenericRepository[models.User, *models.User, int64]
	roles  RoleRepo
	db     database.DB
	logger ectologger.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DB, roles RoleRepo, logger ectologger.Logger) (*UserRepository, error) {
	if roles == nil {
		return nil, apperrors.InvalidArgument("user repository needs a role repository")
	}
	base, err := repository.New[models.User, *models.User, int64](db, models.Users, logger)
	if err != nil {
		return nil, err
	}
	return &UserRepository{
		GenericRepository: base,
		roles:             roles,
		db:                db,
		logger:            logger,
	}, nil
}

// Retrieve returns the user with the given id and its roles, or nil.
func (r *UserRepository) Retrieve(ctx context.Context, id int64) (*models.User, error) {
	user, err := r.GenericRepository.Retrieve(ctx, id)
	if err != nil || user == nil {
		return user, err
	}
	return r.withRoles(ctx, user)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByUsername")
	defer span.End()

	user, err := r.GetUniqueByAttribute(ctx, "username", username)
	if err != nil || user == nil {
		return user, err
	}
	return r.withRoles(ctx, user)
}

// GetByPrincipal resolves an authenticated principal name to its account.
func (r *UserRepository) GetByPrincipal(ctx context.Context, principal string) (*models.User, error) {
	return r.GetByUsername(ctx, principal)
}

// GetByName is GetByUsername; the username is the user's unique name.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.GetByUsername(ctx, name)
}

// GetByRole lists the users holding the named role. Roles are not loaded.
func (r *UserRepository) GetByRole(ctx context.Context, role string) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByRole")
	defer span.End()

	return r.GetListByPath(ctx, query.Via("roles").Field("name"), role)
}

// CreateUser inserts the user and its role grants in one transaction.
func (r *UserRepository) CreateUser(ctx context.Context, username string, roles []models.Role) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.CreateUser", tracing.Table(models.Users.Table))
	defer span.End()

	if username == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}

	user := &models.User{Username: username}
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context) error {
		if _, err := r.Create(ctx, user); err != nil {
			return err
		}
		for _, role := range roles {
			if role.ID == 0 {
				return apperrors.InvalidArgument("role %q has not been stored", role.Name)
			}
			q, args := database.InsertRow(models.UserRolesTable, []string{"user_id", "role_id"}, []any{user.ID, role.ID})
			if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"username": username,
					"role":     role.Name,
				}).Error("failed to grant role")
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	user.Roles = append([]models.Role(nil), roles...)
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":       user.ID,
		"username": username,
		"roles":    user.RoleNames(),
	}).Info("created user")
	return user, nil
}

// GetRoleNames lists the role names of username. The result is empty, never
// nil, when the user is unknown.
func (r *UserRepository) GetRoleNames(ctx context.Context, username string) ([]string, error) {
	return r.roles.GetRoleNames(ctx, username)
}

func (r *UserRepository) withRoles(ctx context.Context, user *models.User) (*models.User, error) {
	roles, err := r.roles.GetRolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}
