package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/entity"
)

type audit struct {
	CreatedBy string `db:"created_by"`
}

type account struct {
	audit
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	Balance     int        `db:"balance"`
	EffectiveAt time.Time  `db:"effective_at"`
	ExpiredAt   *time.Time `db:"expired_at"`
	Notes       []string   `db:"-"`
}

type owner struct {
	ID        int64  `db:"id"`
	AccountID int64  `db:"account_id"`
	Email     string `db:"email"`
}

type keyless struct {
	Name string `db:"name"`
}

func TestDescribe_Columns(t *testing.T) {
	d, err := entity.Describe[account]("accounts")
	require.NoError(t, err)

	assert.Equal(t, "accounts", d.Table)
	assert.Equal(t, "id", d.IDColumn)
	assert.Equal(t, []string{"id", "name", "balance", "effective_at", "expired_at", "created_by"}, d.Columns())
	assert.False(t, d.IsHistorical())

	f, ok := d.Field("balance")
	require.True(t, ok)
	assert.Equal(t, "Balance", f.Name)

	_, ok = d.Field("notes")
	assert.False(t, ok)
}

func TestDescribe_MissingIDColumn(t *testing.T) {
	_, err := entity.Describe[keyless]("keyless")
	assert.Error(t, err)

	d, err := entity.Describe[keyless]("keyless", entity.WithIDColumn("name"))
	require.NoError(t, err)
	assert.Equal(t, "name", d.IDColumn)
}

func TestDescribe_History(t *testing.T) {
	d, err := entity.Describe[account]("accounts", entity.WithHistory("name", "effective_at", "expired_at"))
	require.NoError(t, err)
	assert.True(t, d.IsHistorical())

	_, err = entity.Describe[account]("accounts", entity.WithHistory("name", "expired_at", "effective_at"))
	assert.Error(t, err, "temporal column types are swapped")

	_, err = entity.Describe[account]("accounts", entity.WithHistory("missing", "effective_at", "expired_at"))
	assert.Error(t, err)

	_, err = entity.Describe[account]("accounts", entity.WithHistory("", "", "expired_at"))
	assert.Error(t, err)
}

func TestDescribe_RequiresTable(t *testing.T) {
	_, err := entity.Describe[account]("")
	assert.Error(t, err)

	assert.Panics(t, func() { entity.MustDescribe[account]("") })
}

func TestRelate(t *testing.T) {
	accounts := entity.MustDescribe[account]("accounts")
	owners := entity.MustDescribe[owner]("owners")

	require.NoError(t, accounts.Relate("owners", entity.Relationship{
		Target:       owners,
		LocalColumn:  "id",
		RemoteColumn: "account_id",
	}))
	rel, ok := accounts.Relationship("owners")
	require.True(t, ok)
	assert.Same(t, owners, rel.Target)

	assert.Error(t, accounts.Relate("", entity.Relationship{Target: owners, LocalColumn: "id", RemoteColumn: "account_id"}))
	assert.Error(t, accounts.Relate("bad", entity.Relationship{Target: owners, LocalColumn: "nope", RemoteColumn: "account_id"}))
	assert.Error(t, accounts.Relate("bad", entity.Relationship{Target: owners, LocalColumn: "id", RemoteColumn: "nope"}))
	assert.Error(t, accounts.Relate("bad", entity.Relationship{LocalColumn: "id", RemoteColumn: "id"}))
	assert.Error(t, accounts.Relate("bad", entity.Relationship{
		Target:       owners,
		LocalColumn:  "id",
		RemoteColumn: "id",
		Through:      &entity.JoinTable{Table: "account_owners"},
	}))
}

func TestValues(t *testing.T) {
	d := entity.MustDescribe[account]("accounts")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &account{audit: audit{CreatedBy: "ops"}, ID: 3, Name: "acct1", Balance: 10, EffectiveAt: now}

	values, err := d.Values(a)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), "acct1", 10, now, (*time.Time)(nil), "ops"}, values)

	v, err := d.Value(*a, "name")
	require.NoError(t, err)
	assert.Equal(t, "acct1", v)

	_, err = d.Values(&owner{})
	assert.Error(t, err)
}

func TestSetValue(t *testing.T) {
	d := entity.MustDescribe[account]("accounts")
	a := &account{Name: "acct1"}

	require.NoError(t, d.SetValue(a, "name", "acct2"))
	assert.Equal(t, "acct2", a.Name)

	require.NoError(t, d.SetValue(a, "name", nil))
	assert.Equal(t, "", a.Name)

	assert.Error(t, d.SetValue(a, "name", 7))
	assert.Error(t, d.SetValue(a, "missing", "x"))
	assert.Error(t, d.SetValue(*a, "name", "x"))
}
