package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/repository"
)

type account struct {
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	Balance     int        `db:"balance"`
	EffectiveAt time.Time  `db:"effective_at"`
	ExpiredAt   *time.Time `db:"expired_at"`
}

func (a *account) GetID() int64               { return a.ID }
func (a *account) SetID(id int64)             { a.ID = id }
func (a *account) GetEffectiveAt() time.Time  { return a.EffectiveAt }
func (a *account) SetEffectiveAt(t time.Time) { a.EffectiveAt = t }
func (a *account) GetExpiredAt() *time.Time   { return a.ExpiredAt }
func (a *account) SetExpiredAt(t *time.Time)  { a.ExpiredAt = t }

var (
	accountColumns = []string{"id", "name", "balance", "effective_at", "expired_at"}
	t0             = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1             = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
)

type recordingLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
}

func (l *recordingLocker) LockChain(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func newAccountRepository(t *testing.T, at time.Time, opts ...repository.HistoricalOption) (*repository.HistoricalRepository[account, *account, int64], sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	descriptor := entity.MustDescribe[account]("accounts", entity.WithHistory("name", "effective_at", "expired_at"))
	opts = append([]repository.HistoricalOption{repository.WithClock(func() time.Time { return at })}, opts...)
	repo, err := repository.NewHistorical[account, *account, int64](db, descriptor, getTestLogger(), opts...)
	require.NoError(t, err)
	return repo, mock
}

func TestNewHistorical_RequiresHistory(t *testing.T) {
	db, _ := newMockDB(t)
	_, err := repository.NewHistorical[account, *account, int64](db, entity.MustDescribe[account]("accounts"), getTestLogger())
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestHistoricalCreate_OpensChain(t *testing.T) {
	repo, mock := newAccountRepository(t, t0)

	mock.ExpectQuery(`INSERT INTO accounts \(name, balance, effective_at, expired_at\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id`).
		WithArgs("acct1", 10, t0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	expired := t1
	a := &account{Name: "acct1", Balance: 10, ExpiredAt: &expired}
	created, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, t0, created.EffectiveAt)
	assert.Nil(t, created.ExpiredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCurrent_ExpiresThenInserts(t *testing.T) {
	locker := &recordingLocker{}
	repo, mock := newAccountRepository(t, t1, repository.WithChainLocker(locker))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM accounts AS t0 WHERE t0\.id = \$1 ORDER BY t0\.id LIMIT`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL ORDER BY t0\.id FOR UPDATE`).
		WithArgs("acct1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectExec(`UPDATE accounts SET expired_at = \$1 WHERE id IN \(\$2\)`).
		WithArgs(t1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO accounts \(name, balance, effective_at, expired_at\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id`).
		WithArgs("acct1", 99, t1, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	a := &account{ID: 1, Name: "renamed by mistake", Balance: 99}
	next, err := repo.UpdateCurrent(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, int64(2), next.ID)
	assert.Equal(t, "acct1", next.Name, "business key is carried forward")
	assert.Equal(t, 99, next.Balance)
	assert.Equal(t, t1, next.EffectiveAt)
	assert.Nil(t, next.ExpiredAt)

	assert.Equal(t, int64(2), a.ID, "caller's entity takes the new identity")
	assert.Equal(t, t1, a.EffectiveAt)

	assert.Equal(t, []string{"accounts:acct1"}, locker.keys)
	assert.Equal(t, 1, locker.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCurrent_UnknownIDRollsBack(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE t0\.id = \$1`).WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectRollback()

	a := &account{ID: 404, Name: "ghost"}
	_, err := repo.UpdateCurrent(context.Background(), a)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, int64(404), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet(), "no write reaches the store")
}

func TestUpdateCurrent_NoOpenRow(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, t0))
	mock.ExpectQuery(`t0\.expired_at IS NULL .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectRollback()

	_, err := repo.UpdateCurrent(context.Background(), &account{ID: 1, Balance: 5})
	assert.True(t, apperrors.IsPreconditionFailed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCurrent_ConcurrentInsertConflict(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectExec(`UPDATE accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO accounts`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	a := &account{ID: 1, Balance: 5}
	_, err := repo.UpdateCurrent(context.Background(), a)
	assert.True(t, apperrors.IsPreconditionFailed(err))
	assert.Equal(t, int64(1), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrent(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectQuery(`FROM accounts AS t0 WHERE t0\.expired_at IS NULL ORDER BY t0\.id`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(2, "acct1", 99, t1, nil))

	current, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, int64(2), current[0].ID)
}

func TestGetCurrentByName(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL ORDER BY t0\.id LIMIT`).
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(2, "acct1", 99, t1, nil).
			AddRow(3, "acct1", 98, t1, nil))

	current, err := repo.GetCurrentByName(context.Background(), "acct1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, int64(2), current.ID)

	mock.ExpectQuery(`WHERE t0\.name = \$1 AND t0\.expired_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	missing, err := repo.GetCurrentByName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetHistory(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectQuery(`WHERE t0\.name = \$1 ORDER BY t0\.effective_at, t0\.id`).
		WithArgs("acct1").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(1, "acct1", 10, t0, t1).
			AddRow(2, "acct1", 99, t1, nil))

	history, err := repo.GetHistory(context.Background(), "acct1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ExpiredAt)
	assert.Equal(t, history[1].EffectiveAt, *history[0].ExpiredAt)
}

func TestHistoricalRemove_ExpiresWithoutReplacement(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, nil))
	mock.ExpectExec(`UPDATE accounts SET expired_at = \$1 WHERE id IN \(\$2\)`).
		WithArgs(t1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.Remove(context.Background(), &account{ID: 1})
	require.NoError(t, err)
	require.NotNil(t, removed)
	require.NotNil(t, removed.ExpiredAt)
	assert.Equal(t, t1, *removed.ExpiredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoricalRemove_AlreadyExpired(t *testing.T) {
	repo, mock := newAccountRepository(t, t1)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE t0\.id = \$1`).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "acct1", 10, t0, t0))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectCommit()

	removed, err := repo.Remove(context.Background(), &account{ID: 1})
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
