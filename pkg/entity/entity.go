// Package entity describes how Go structs map onto tables: columns, identity,
// relationships and, for historical entities, the temporal columns.
package entity

import "time"

// Entity is a persisted record with a surrogate identifier.
type Entity[PK comparable] interface {
	GetID() PK
	SetID(id PK)
}

// Historical is implemented by entities whose state is kept as a chain of
// time bounded rows. A nil ExpiredAt marks the open row.
type Historical interface {
	GetEffectiveAt() time.Time
	SetEffectiveAt(t time.Time)
	GetExpiredAt() *time.Time
	SetExpiredAt(t *time.Time)
}
