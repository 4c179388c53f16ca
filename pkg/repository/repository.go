// Package repository provides the identity lifecycle of an entity type on top
// of the query builder, plus the expire-then-insert protocol for historical
// entities.
package repository

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// GenericRepository is the reusable base of every concrete repository. It
// holds no transaction state: writes run on the transaction carried by ctx,
// or directly on the pool when there is none.
type GenericRepository[T any, PT interface {
	*T
	entity.Entity[PK]
}, PK comparable] struct {
	*query.Builder[T]
	db         database.DB
	descriptor *entity.Descriptor
	logger     ectologger.Logger
}

func New[T any, PT interface {
	*T
	entity.Entity[PK]
}, PK comparable](db database.DB, descriptor *entity.Descriptor, logger ectologger.Logger) (*GenericRepository[T, PT, PK], error) {
	builder, err := query.NewBuilder[T](db, descriptor, logger)
	if err != nil {
		return nil, err
	}
	return &GenericRepository[T, PT, PK]{
		Builder:    builder,
		db:         db,
		descriptor: descriptor,
		logger:     logger,
	}, nil
}

// Create inserts e and sets the identifier assigned by the store. A zero
// identifier is left out of the insert.
func (r *GenericRepository[T, PT, PK]) Create(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "GenericRepository.Create", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot create a nil %s", r.descriptor.Type)
	}

	cols, values, err := r.columnValues(e, e.GetID() == r.zeroID())
	if err != nil {
		return nil, apperrors.InvalidArgument("%s", err.Error())
	}

	q, args := database.InsertRow(r.descriptor.Table, cols, values, r.descriptor.IDColumn)
	var id PK
	if err := database.GetExecutor(ctx, r.db).QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("table", r.descriptor.Table).Error("failed to create entity")
		return nil, err
	}
	e.SetID(id)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"table": r.descriptor.Table,
		"id":    id,
	}).Debugf("Created %s", r.descriptor.Table)
	return e, nil
}

// Retrieve returns the row with the given identifier, or nil when there is none.
func (r *GenericRepository[T, PT, PK]) Retrieve(ctx context.Context, id PK) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "GenericRepository.Retrieve", tracing.Table(r.descriptor.Table))
	defer span.End()

	return r.byID(ctx, id, false)
}

// Update writes every column of e, inserting the row if its identifier is
// unknown, and returns the row as the store now holds it. The returned value
// is a new instance.
func (r *GenericRepository[T, PT, PK]) Update(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "GenericRepository.Update", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot update a nil %s", r.descriptor.Type)
	}

	cols, values, err := r.columnValues(e, e.GetID() == r.zeroID())
	if err != nil {
		return nil, apperrors.InvalidArgument("%s", err.Error())
	}

	q, args := database.UpsertRow(r.descriptor.Table, r.descriptor.IDColumn, cols, values, r.descriptor.Columns()...)
	var out T
	if err := database.GetExecutor(ctx, r.db).QueryRowxContext(ctx, q, args...).StructScan(&out); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table": r.descriptor.Table,
			"id":    e.GetID(),
		}).Error("failed to update entity")
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"table": r.descriptor.Table,
		"id":    PT(&out).GetID(),
	}).Debugf("Updated %s", r.descriptor.Table)
	return &out, nil
}

// Remove deletes the row identified by e and returns it as it was stored, so
// a stale or detached e still removes the right row. Removing a row that does
// not exist returns nil.
func (r *GenericRepository[T, PT, PK]) Remove(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "GenericRepository.Remove", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot remove a nil %s", r.descriptor.Type)
	}

	var removed PT
	err := r.db.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := r.byID(ctx, e.GetID(), true)
		if err != nil || stored == nil {
			return err
		}

		q, args := database.DeleteRow(r.descriptor.Table, r.descriptor.IDColumn, e.GetID())
		if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"table": r.descriptor.Table,
				"id":    e.GetID(),
			}).Error("failed to remove entity")
			return err
		}

		removed = stored
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if removed == nil {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"table": r.descriptor.Table,
			"id":    e.GetID(),
		}).Debug("nothing to remove")
	}
	return removed, nil
}

// Refresh overwrites e with the stored row, discarding unsaved changes.
func (r *GenericRepository[T, PT, PK]) Refresh(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "GenericRepository.Refresh", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot refresh a nil %s", r.descriptor.Type)
	}

	stored, err := r.byID(ctx, e.GetID(), false)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperrors.NotFound("%s %v does not exist", r.descriptor.Table, e.GetID())
	}

	*e = *stored
	return e, nil
}

func (r *GenericRepository[T, PT, PK]) byID(ctx context.Context, id PK, forUpdate bool) (PT, error) {
	rows, err := r.Query(ctx, query.Options{Limit: 1, ForUpdate: forUpdate}, query.Equals(query.Attr(r.descriptor.IDColumn), id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GenericRepository[T, PT, PK]) columnValues(e PT, omitID bool) ([]string, []any, error) {
	values, err := r.descriptor.Values(e)
	if err != nil {
		return nil, nil, err
	}

	cols := r.descriptor.Columns()
	if !omitID {
		return cols, values, nil
	}

	outCols := make([]string, 0, len(cols))
	outValues := make([]any, 0, len(values))
	for i, col := range cols {
		if col == r.descriptor.IDColumn {
			continue
		}
		outCols = append(outCols, col)
		outValues = append(outValues, values[i])
	}
	return outCols, outValues, nil
}

func (r *GenericRepository[T, PT, PK]) zeroID() PK {
	var zero PK
	return zero
}
