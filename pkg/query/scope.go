package query

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

const rootAlias = "t0"

// conditions is the expression surface of a select builder.
type conditions interface {
	Equal(field string, value interface{}) string
	NotEqual(field string, value interface{}) string
	GreaterThan(field string, value interface{}) string
	GreaterEqualThan(field string, value interface{}) string
	LessThan(field string, value interface{}) string
	LessEqualThan(field string, value interface{}) string
	In(field string, values ...interface{}) string
	IsNull(field string) string
}

// column is a path resolved against one select.
type column struct {
	expr  string
	field entity.Field
}

// scope resolves paths against a single select, adding each relationship
// join once and handing out table aliases t0, t1, ...
type scope struct {
	sb      *sqlbuilder.SelectBuilder
	root    *entity.Descriptor
	aliases map[string]string
	next    int
	joined  bool
}

func newScope(sb *sqlbuilder.SelectBuilder, root *entity.Descriptor) *scope {
	return &scope{
		sb:      sb,
		root:    root,
		aliases: map[string]string{"": rootAlias},
		next:    1,
	}
}

func (s *scope) alias() string {
	a := fmt.Sprintf("t%d", s.next)
	s.next++
	return a
}

func (s *scope) resolve(p Path) (column, error) {
	if p.field == "" {
		return column{}, apperrors.InvalidArgument("path on %s has no attribute", s.root.Table)
	}

	current := s.root
	currentAlias := rootAlias
	key := ""
	for _, hop := range p.hops {
		rel, ok := current.Relationship(hop)
		if !ok {
			return column{}, apperrors.InvalidArgument("%s has no relationship %q", current.Table, hop)
		}

		key += "." + hop
		targetAlias, ok := s.aliases[key]
		if !ok {
			targetAlias = s.join(currentAlias, rel)
			s.aliases[key] = targetAlias
		}

		current = rel.Target
		currentAlias = targetAlias
	}

	f, ok := current.Field(p.field)
	if !ok {
		return column{}, apperrors.InvalidArgument("%s has no attribute %q", current.Table, p.field)
	}

	return column{
		expr:  currentAlias + "." + f.Column,
		field: f,
	}, nil
}

func (s *scope) join(fromAlias string, rel entity.Relationship) string {
	s.joined = true

	if rel.Through != nil {
		throughAlias := s.alias()
		s.sb.Join(
			s.sb.As(rel.Through.Table, throughAlias),
			fmt.Sprintf("%s.%s = %s.%s", fromAlias, rel.LocalColumn, throughAlias, rel.Through.LocalColumn),
		)
		targetAlias := s.alias()
		s.sb.Join(
			s.sb.As(rel.Target.Table, targetAlias),
			fmt.Sprintf("%s.%s = %s.%s", throughAlias, rel.Through.RemoteColumn, targetAlias, rel.RemoteColumn),
		)
		return targetAlias
	}

	targetAlias := s.alias()
	s.sb.Join(
		s.sb.As(rel.Target.Table, targetAlias),
		fmt.Sprintf("%s.%s = %s.%s", fromAlias, rel.LocalColumn, targetAlias, rel.RemoteColumn),
	)
	return targetAlias
}

// rootColumns is the select list: every mapped column of the root entity.
func (s *scope) rootColumns() []string {
	cols := s.root.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = rootAlias + "." + c
	}
	return out
}

func joinStrings(parts []string) string {
	return strings.Join(parts, " AND ")
}
