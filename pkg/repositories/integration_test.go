package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/repository"
	"github.com/Ramsey-B/fern/pkg/testenv"
)

const schema = `
CREATE TABLE roles (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	default_role BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE
);
CREATE TABLE user_roles (
	user_id BIGINT NOT NULL REFERENCES users(id),
	role_id BIGINT NOT NULL REFERENCES roles(id),
	PRIMARY KEY (user_id, role_id)
);
CREATE TABLE user_templates (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	criteria TEXT,
	auto_authorize BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE user_template_roles (
	template_id BIGINT NOT NULL REFERENCES user_templates(id),
	role_id BIGINT NOT NULL REFERENCES roles(id),
	PRIMARY KEY (template_id, role_id)
);
CREATE TABLE accounts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	balance INT NOT NULL,
	effective_at TIMESTAMPTZ NOT NULL,
	expired_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX accounts_open_chain ON accounts (name) WHERE expired_at IS NULL;
CREATE TABLE groups (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	effective_at TIMESTAMPTZ NOT NULL,
	expired_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX groups_open_chain ON groups (name) WHERE expired_at IS NULL;
CREATE TABLE readings (
	id BIGSERIAL PRIMARY KEY,
	value INT NOT NULL
);
`

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

type reading struct {
	ID    int64 `db:"id"`
	Value int   `db:"value"`
}

func (r *reading) GetID() int64   { return r.ID }
func (r *reading) SetID(id int64) { r.ID = id }

type accountRepo = repository.HistoricalRepository[account, *account, int64]

type integrationEnv struct {
	db     database.DB
	redis  *redis.Client
	logger ectologger.Logger
}

func getIntegrationLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func startIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()
	testenv.SkipUnlessIntegration(t)

	ctx := context.Background()
	sm := testenv.NewServiceManager(ctx)
	t.Cleanup(func() { _ = sm.Stop() })
	require.NoError(t, sm.StartPostgres())
	require.NoError(t, sm.StartRedis())

	logger := getIntegrationLogger()
	db, err := database.Connect(ctx, sm.Postgres, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)

	client, err := redis.NewClient(ctx, sm.Redis, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return &integrationEnv{db: db, redis: client, logger: logger}
}

func (env *integrationEnv) accounts(t *testing.T, opts ...repository.HistoricalOption) *accountRepo {
	t.Helper()
	descriptor := entity.MustDescribe[account]("accounts", entity.WithHistory("name", "effective_at", "expired_at"))
	repo, err := repository.NewHistorical[account, *account, int64](env.db, descriptor, env.logger, opts...)
	require.NoError(t, err)
	return repo
}

func assertContiguous(t *testing.T, history []account) {
	t.Helper()
	open := 0
	for i, row := range history {
		if row.ExpiredAt == nil {
			open++
			assert.Equal(t, len(history)-1, i, "only the last row may be open")
			continue
		}
		if i+1 < len(history) {
			assert.True(t, row.ExpiredAt.Equal(history[i+1].EffectiveAt),
				"row %d expired at %s but row %d is effective from %s", i, row.ExpiredAt, i+1, history[i+1].EffectiveAt)
		}
	}
	assert.Equal(t, 1, open)
}

func TestIntegration(t *testing.T) {
	env := startIntegrationEnv(t)
	ctx := context.Background()

	t.Run("duplicate role names resolve to one role", func(t *testing.T) {
		roles, err := repositories.NewRoleRepository(env.db, env.logger)
		require.NoError(t, err)

		first, err := roles.Create(ctx, &models.Role{Name: "ADMIN"})
		require.NoError(t, err)
		_, err = roles.Create(ctx, &models.Role{Name: "ADMIN"})
		require.NoError(t, err)

		role, err := roles.GetRoleByName(ctx, "ADMIN")
		require.NoError(t, err)
		require.NotNil(t, role)
		assert.Equal(t, first.ID, role.ID)
	})

	t.Run("users and their roles", func(t *testing.T) {
		roles, err := repositories.NewRoleRepository(env.db, env.logger)
		require.NoError(t, err)
		users, err := repositories.NewUserRepository(env.db, roles, env.logger)
		require.NoError(t, err)

		reader, err := roles.Create(ctx, &models.Role{Name: "READER", DefaultRole: true})
		require.NoError(t, err)

		created, err := users.CreateUser(ctx, "alice", []models.Role{*reader})
		require.NoError(t, err)

		user, err := users.GetByPrincipal(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, created.ID, user.ID)
		assert.Equal(t, []string{"READER"}, user.RoleNames())

		names, err := users.GetRoleNames(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, []string{}, names)

		holders, err := users.GetByRole(ctx, "READER")
		require.NoError(t, err)
		assert.Len(t, holders, 1)

		_, err = users.CreateUser(ctx, "bob", []models.Role{{ID: 999_999, Name: "GHOST"}})
		require.Error(t, err)
		missing, err := users.GetByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Nil(t, missing, "failed grant must roll the user back")
	})

	t.Run("group versions", func(t *testing.T) {
		groups, err := repositories.NewGroupRepository(env.db, env.logger,
			repository.WithChainLocker(redis.NewChainLocker(env.redis, "fern:chain:")))
		require.NoError(t, err)

		_, err = groups.CreateGroup(ctx, "research", nil)
		require.NoError(t, err)
		_, err = groups.CreateGroup(ctx, "research", nil)
		assert.True(t, apperrors.IsPreconditionFailed(err))

		desc := "all researchers"
		_, err = groups.Describe(ctx, "research", &desc)
		require.NoError(t, err)

		current, err := groups.GetByName(ctx, "research")
		require.NoError(t, err)
		require.NotNil(t, current)
		require.NotNil(t, current.Description)
		assert.Equal(t, desc, *current.Description)

		_, err = groups.RemoveGroup(ctx, "research")
		require.NoError(t, err)
		current, err = groups.GetByName(ctx, "research")
		require.NoError(t, err)
		assert.Nil(t, current)

		history, err := groups.GetGroupHistory(ctx, "research")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("comparison over readings", func(t *testing.T) {
		readings, err := repository.New[reading, *reading, int64](env.db, entity.MustDescribe[reading]("readings"), env.logger)
		require.NoError(t, err)
		for _, v := range []int{5, 10, 15, 20} {
			_, err := readings.Create(ctx, &reading{Value: v})
			require.NoError(t, err)
		}

		rows, err := readings.GetListByComparison(ctx, "value", query.GreaterThan, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 15, rows[0].Value)
		assert.Equal(t, 20, rows[1].Value)
	})

	t.Run("update current keeps one open row", func(t *testing.T) {
		repo := env.accounts(t)

		acct, err := repo.Create(ctx, &account{Name: "acct1", Balance: 1})
		require.NoError(t, err)
		firstID := acct.ID

		acct.Balance = 2
		_, err = repo.UpdateCurrent(ctx, acct)
		require.NoError(t, err)
		assert.NotEqual(t, firstID, acct.ID)

		history, err := repo.GetHistory(ctx, "acct1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 1, history[0].Balance)
		assert.Equal(t, 2, history[1].Balance)
		assertContiguous(t, history)

		current, err := repo.GetCurrentByName(ctx, "acct1")
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, acct.ID, current.ID)
	})

	t.Run("n updates produce n+1 rows", func(t *testing.T) {
		repo := env.accounts(t, repository.WithChainLocker(database.NewAdvisoryLocker(env.logger)))
		const n = 5

		acct, err := repo.Create(ctx, &account{Name: "acct2", Balance: 0})
		require.NoError(t, err)
		for i := 1; i <= n; i++ {
			acct.Balance = i
			_, err := repo.UpdateCurrent(ctx, acct)
			require.NoError(t, err)
		}

		history, err := repo.GetHistory(ctx, "acct2")
		require.NoError(t, err)
		assert.Len(t, history, n+1)
		assertContiguous(t, history)
	})

	t.Run("update of a missing id writes nothing", func(t *testing.T) {
		repo := env.accounts(t)

		_, err := repo.UpdateCurrent(ctx, &account{ID: 999_999, Name: "ghost"})
		assert.True(t, apperrors.IsNotFound(err))

		history, err := repo.GetHistory(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("concurrent updates serialized by the redis locker", func(t *testing.T) {
		locker := redis.NewChainLocker(env.redis, "fern:chain:", redis.WithLockTimeout(30*time.Second))
		repo := env.accounts(t, repository.WithChainLocker(locker))
		const writers = 8

		acct, err := repo.Create(ctx, &account{Name: "acct3", Balance: 0})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 1; i <= writers; i++ {
			wg.Add(1)
			go func(balance int) {
				defer wg.Done()
				_, err := repo.UpdateCurrent(ctx, &account{ID: acct.ID, Name: "acct3", Balance: balance})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		history, err := repo.GetHistory(ctx, "acct3")
		require.NoError(t, err)
		assert.Len(t, history, writers+1)
		assertContiguous(t, history)
	})

	t.Run("concurrent updates without a locker never open two rows", func(t *testing.T) {
		repo := env.accounts(t)
		const writers = 8

		acct, err := repo.Create(ctx, &account{Name: "acct4", Balance: 0})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 1; i <= writers; i++ {
			wg.Add(1)
			go func(balance int) {
				defer wg.Done()
				_, err := repo.UpdateCurrent(ctx, &account{ID: acct.ID, Name: "acct4", Balance: balance})
				if err != nil {
					assert.True(t, apperrors.IsPreconditionFailed(err), fmt.Sprintf("unexpected error: %v", err))
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		history, err := repo.GetHistory(ctx, "acct4")
		require.NoError(t, err)
		assert.Len(t, history, succeeded+1)
		assertContiguous(t, history)
	})
}
