package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/repository"
)

var (
	groupColumns = []string{"id", "name", "description", "effective_at", "expired_at"}
	created      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	described    = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
)

func newGroupRepository(t *testing.T, at time.Time) (*repositories.GroupRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	logger := getTestLogger()
	db := database.NewDatabaseInstance(sqlx.NewDb(sqlDB, "sqlmock"), logger)
	repo, err := repositories.NewGroupRepository(db, logger, repository.WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	return repo, mock
}

func TestGroupRepository_CreateGroup(t *testing.T) {
	repo, mock := newGroupRepository(t, created)
	desc := "research staff"

	mock.ExpectQuery(`FROM groups AS t0 WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(groupColumns))
	mock.ExpectQuery(`INSERT INTO groups \(name, description, effective_at, expired_at\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id`).
		WithArgs("research", &desc, created, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	group, err := repo.CreateGroup(context.Background(), "research", &desc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), group.ID)
	assert.Equal(t, created, group.EffectiveAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_CreateGroup_Exists(t *testing.T) {
	repo, mock := newGroupRepository(t, created)

	mock.ExpectQuery(`FROM groups AS t0 WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))

	_, err := repo.CreateGroup(context.Background(), "research", nil)
	assert.True(t, apperrors.IsPreconditionFailed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_Describe(t *testing.T) {
	repo, mock := newGroupRepository(t, described)
	desc := "all researchers"

	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM groups AS t0 WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL ORDER BY t0\.id FOR UPDATE`).
		WithArgs("research").
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectExec(`UPDATE groups SET expired_at = \$1 WHERE id IN \(\$2\)`).
		WithArgs(described, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO groups`).
		WithArgs("research", &desc, described, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	group, err := repo.Describe(context.Background(), "research", &desc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), group.ID)
	require.NotNil(t, group.Description)
	assert.Equal(t, desc, *group.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_Describe_Missing(t *testing.T) {
	repo, mock := newGroupRepository(t, described)

	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(groupColumns))

	_, err := repo.Describe(context.Background(), "nobody", nil)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_RemoveGroup(t *testing.T) {
	repo, mock := newGroupRepository(t, described)

	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM groups AS t0 WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(1, "research", nil, created, nil))
	mock.ExpectExec(`UPDATE groups SET expired_at = \$1 WHERE id IN \(\$2\)`).
		WithArgs(described, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.RemoveGroup(context.Background(), "research")
	require.NoError(t, err)
	require.NotNil(t, removed.ExpiredAt)
	assert.Equal(t, described, *removed.ExpiredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_GetGroupHistory(t *testing.T) {
	repo, mock := newGroupRepository(t, described)

	mock.ExpectQuery(`FROM groups AS t0 WHERE t0\.name = \$1 ORDER BY t0\.effective_at, t0\.id`).
		WithArgs("research").
		WillReturnRows(sqlmock.NewRows(groupColumns).
			AddRow(1, "research", nil, created, described).
			AddRow(2, "research", "all researchers", described, nil))

	history, err := repo.GetGroupHistory(context.Background(), "research")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[1].ExpiredAt)
}
