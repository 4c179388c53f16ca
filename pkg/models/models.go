// Package models holds the role based access entities shared by services and
// their table descriptors.
package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/entity"
)

// Role is a named permission granted to users.
type Role struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	DefaultRole bool   `db:"default_role" json:"default_role"`
}

func (r *Role) GetID() int64   { return r.ID }
func (r *Role) SetID(id int64) { r.ID = id }

// User is an account known by its username. Roles is loaded separately.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Roles    []Role `db:"-" json:"roles,omitempty"`
}

func (u *User) GetID() int64   { return u.ID }
func (u *User) SetID(id int64) { u.ID = id }

// RoleNames lists the names of the loaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// UserTemplate describes the roles a new account receives. A nil Criteria
// matches every account.
type UserTemplate struct {
	ID            int64   `db:"id" json:"id"`
	Name          string  `db:"name" json:"name"`
	Criteria      *string `db:"criteria" json:"criteria,omitempty"`
	AutoAuthorize bool    `db:"auto_authorize" json:"auto_authorize"`
	Roles         []Role  `db:"-" json:"roles,omitempty"`
}

func (t *UserTemplate) GetID() int64   { return t.ID }
func (t *UserTemplate) SetID(id int64) { t.ID = id }

// Group is a named collection of users whose description is versioned. Each
// change closes the open row and opens a new one.
type Group struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	EffectiveAt time.Time  `db:"effective_at" json:"effective_at"`
	ExpiredAt   *time.Time `db:"expired_at" json:"expired_at,omitempty"`
}

func (g *Group) GetID() int64               { return g.ID }
func (g *Group) SetID(id int64)             { g.ID = id }
func (g *Group) GetEffectiveAt() time.Time  { return g.EffectiveAt }
func (g *Group) SetEffectiveAt(t time.Time) { g.EffectiveAt = t }
func (g *Group) GetExpiredAt() *time.Time   { return g.ExpiredAt }
func (g *Group) SetExpiredAt(t *time.Time)  { g.ExpiredAt = t }

// Join tables.
const (
	UserRolesTable     = "user_roles"
	TemplateRolesTable = "user_template_roles"
)

var (
	Roles         = entity.MustDescribe[Role]("roles")
	Users         = entity.MustDescribe[User]("users")
	UserTemplates = entity.MustDescribe[UserTemplate]("user_templates")
	Groups        = entity.MustDescribe[Group]("groups", entity.WithHistory("name", "effective_at", "expired_at"))
)

func init() {
	Users.MustRelate("roles", entity.Relationship{
		Target:       Roles,
		LocalColumn:  "id",
		RemoteColumn: "id",
		Through:      &entity.JoinTable{Table: UserRolesTable, LocalColumn: "user_id", RemoteColumn: "role_id"},
	})
	Roles.MustRelate("users", entity.Relationship{
		Target:       Users,
		LocalColumn:  "id",
		RemoteColumn: "id",
		Through:      &entity.JoinTable{Table: UserRolesTable, LocalColumn: "role_id", RemoteColumn: "user_id"},
	})
	Roles.MustRelate("templates", entity.Relationship{
		Target:       UserTemplates,
		LocalColumn:  "id",
		RemoteColumn: "id",
		Through:      &entity.JoinTable{Table: TemplateRolesTable, LocalColumn: "role_id", RemoteColumn: "template_id"},
	})
	UserTemplates.MustRelate("roles", entity.Relationship{
		Target:       Roles,
		LocalColumn:  "id",
		RemoteColumn: "id",
		Through:      &entity.JoinTable{Table: TemplateRolesTable, LocalColumn: "template_id", RemoteColumn: "role_id"},
	})
}
