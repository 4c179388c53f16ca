package query

import "strings"

// Path reaches a scalar column from the root entity, either directly or
// through a chain of named relationships. Paths are immutable and resolved
// against a fresh select for every query.
type Path struct {
	hops  []string
	field string
}

// Attr is a path to a column of the root entity.
func Attr(column string) Path {
	return Path{field: column}
}

// Hops is a partially built path through relationships.
type Hops struct {
	hops []string
}

// Via starts a path that traverses the named relationships in order.
func Via(relationships ...string) Hops {
	return Hops{hops: append([]string(nil), relationships...)}
}

// Field ends the path at a column of the last related entity.
func (h Hops) Field(column string) Path {
	return Path{hops: append([]string(nil), h.hops...), field: column}
}

// ParsePath reads the dotted form "rel.rel.column".
func ParsePath(s string) Path {
	parts := strings.Split(s, ".")
	return Path{hops: parts[:len(parts)-1], field: parts[len(parts)-1]}
}

func (p Path) IsAttribute() bool {
	return len(p.hops) == 0
}

func (p Path) Relationships() []string {
	return append([]string(nil), p.hops...)
}

func (p Path) Field() string {
	return p.field
}

func (p Path) String() string {
	if len(p.hops) == 0 {
		return p.field
	}
	return strings.Join(p.hops, ".") + "." + p.field
}
