// Package query builds and runs predicate queries against one entity type.
package query

import (
	"context"
	"reflect"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Options shapes a query beyond its predicates.
type Options struct {
	// OrderBy defaults to the root identifier
	OrderBy   []Path
	Limit     int
	ForUpdate bool
}

// Builder runs predicate queries for entities of type T.
type Builder[T any] struct {
	db         database.DB
	descriptor *entity.Descriptor
	logger     ectologger.Logger
}

// NewBuilder binds a builder to a descriptor of T.
func NewBuilder[T any](db database.DB, descriptor *entity.Descriptor, logger ectologger.Logger) (*Builder[T], error) {
	if descriptor == nil {
		return nil, apperrors.InvalidArgument("entity descriptor is required")
	}
	if db == nil {
		return nil, apperrors.InvalidArgument("database is required for %s", descriptor.Table)
	}
	if t := reflect.TypeOf((*T)(nil)).Elem(); t != descriptor.Type {
		return nil, apperrors.InvalidArgument("descriptor for %s cannot build queries for %s", descriptor.Type, t)
	}
	return &Builder[T]{
		db:         db,
		descriptor: descriptor,
		logger:     logger,
	}, nil
}

func (b *Builder[T]) Descriptor() *entity.Descriptor {
	return b.descriptor
}

func (b *Builder[T]) DB() database.DB {
	return b.db
}

func (b *Builder[T]) Logger() ectologger.Logger {
	return b.logger
}

// GetAll returns every row ordered by identifier.
func (b *Builder[T]) GetAll(ctx context.Context) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetAll", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.Query(ctx, Options{})
}

// GetUniqueByAttribute returns the row whose attribute equals value, or nil.
func (b *Builder[T]) GetUniqueByAttribute(ctx context.Context, attribute string, value any) (*T, error) {
	return b.GetUniqueByPath(ctx, Attr(attribute), value)
}

// GetUniqueByPath returns the row whose path equals value, or nil.
func (b *Builder[T]) GetUniqueByPath(ctx context.Context, path Path, value any) (*T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetUniqueByPath", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.GetUnique(ctx, Equals(path, value))
}

// GetUnique expects at most one row to match. No match is nil, nil. When
// several rows match, the one with the lowest identifier is returned and the
// anomaly is logged and counted.
func (b *Builder[T]) GetUnique(ctx context.Context, predicates ...Predicate) (*T, error) {
	rows, err := b.Query(ctx, Options{Limit: 2}, predicates...)
	if err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"table":     b.descriptor.Table,
			"predicate": predicateList(predicates),
		}).Debug("result not existent")
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"table":     b.descriptor.Table,
			"predicate": predicateList(predicates),
		}).Warnf("result not unique for %s: %s", b.descriptor.Table, predicateList(predicates))
		metrics.NonUniqueResultsTotal.WithLabelValues(b.descriptor.Table).Inc()
		return &rows[0], nil
	}
}

// GetListByAttribute returns every row whose attribute equals value.
func (b *Builder[T]) GetListByAttribute(ctx context.Context, attribute string, value any) ([]T, error) {
	return b.GetListByPath(ctx, Attr(attribute), value)
}

func (b *Builder[T]) GetListByPath(ctx context.Context, path Path, value any) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetListByPath", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.Query(ctx, Options{}, Equals(path, value))
}

// GetListByComparison returns every row where attribute op threshold holds.
func (b *Builder[T]) GetListByComparison(ctx context.Context, attribute string, op Comparator, threshold any) ([]T, error) {
	return b.GetListByPathComparison(ctx, Attr(attribute), op, threshold)
}

func (b *Builder[T]) GetListByPathComparison(ctx context.Context, path Path, op Comparator, threshold any) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetListByPathComparison", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.Query(ctx, Options{}, Compare(path, op, threshold))
}

// GetListByAttributeIn returns every row whose attribute is in values. An
// empty set returns no rows.
func (b *Builder[T]) GetListByAttributeIn(ctx context.Context, attribute string, values []any) ([]T, error) {
	return b.GetListByPathIn(ctx, Attr(attribute), values)
}

func (b *Builder[T]) GetListByPathIn(ctx context.Context, path Path, values []any) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetListByPathIn", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.Query(ctx, Options{}, In(path, values))
}

// GetListAsc returns every row sorted ascending by attribute.
func (b *Builder[T]) GetListAsc(ctx context.Context, attribute string) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "QueryBuilder.GetListAsc", tracing.Table(b.descriptor.Table))
	defer span.End()

	return b.Query(ctx, Options{OrderBy: []Path{Attr(attribute), Attr(b.descriptor.IDColumn)}})
}

// Where returns every row matching all predicates.
func (b *Builder[T]) Where(ctx context.Context, predicates ...Predicate) ([]T, error) {
	return b.Query(ctx, Options{}, predicates...)
}

// Query renders and runs a select over the root entity's columns. It runs on
// the transaction in ctx when there is one. Store errors are returned as is.
func (b *Builder[T]) Query(ctx context.Context, opts Options, predicates ...Predicate) ([]T, error) {
	query, args, err := b.build(opts, predicates...)
	if err != nil {
		return nil, err
	}

	rows := []T{}
	if err := database.GetExecutor(ctx, b.db).SelectContext(ctx, &rows, query, args...); err != nil {
		b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":     b.descriptor.Table,
			"predicate": predicateList(predicates),
		}).Error("failed to query entities")
		metrics.QueryErrorsTotal.WithLabelValues(b.descriptor.Table).Inc()
		return nil, err
	}

	return rows, nil
}

func (b *Builder[T]) build(opts Options, predicates ...Predicate) (string, []any, error) {
	sb := database.NewSelectBuilder()
	s := newScope(sb, b.descriptor)

	sb.Select(s.rootColumns()...)
	sb.From(sb.As(b.descriptor.Table, rootAlias))

	conds := make([]string, 0, len(predicates))
	for _, p := range predicates {
		if p == nil {
			return "", nil, apperrors.InvalidArgument("nil predicate on %s", b.descriptor.Table)
		}
		cond, err := p.render(s)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) > 0 {
		sb.Where(conds...)
	}

	orderBy := opts.OrderBy
	if len(orderBy) == 0 {
		orderBy = []Path{Attr(b.descriptor.IDColumn)}
	}
	order := make([]string, 0, len(orderBy))
	for _, p := range orderBy {
		if !p.IsAttribute() {
			return "", nil, apperrors.InvalidArgument("cannot order %s by related attribute %s", b.descriptor.Table, p)
		}
		col, err := s.resolve(p)
		if err != nil {
			return "", nil, err
		}
		order = append(order, col.expr)
	}
	sb.OrderBy(order...)

	if opts.Limit > 0 {
		sb.Limit(opts.Limit)
	}

	if s.joined {
		if opts.ForUpdate {
			return "", nil, apperrors.InvalidArgument("cannot lock rows of %s selected through relationships", b.descriptor.Table)
		}
		sb.Distinct()
	} else if opts.ForUpdate {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	return query, args, nil
}

func predicateList(predicates []Predicate) string {
	parts := make([]string, len(predicates))
	for i, p := range predicates {
		if p == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = p.String()
	}
	return joinStrings(parts)
}
