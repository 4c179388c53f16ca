package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/entity"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ChainLocker serializes writers of one business key chain. The returned
// release func runs once the surrounding transaction has finished.
type ChainLocker interface {
	LockChain(ctx context.Context, key string) (func(context.Context) error, error)
}

type historicalOptions struct {
	clock  func() time.Time
	locker ChainLocker
}

type HistoricalOption func(*historicalOptions)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) HistoricalOption {
	return func(o *historicalOptions) {
		o.clock = clock
	}
}

// WithChainLocker takes a lock on the chain before its open row is read.
func WithChainLocker(locker ChainLocker) HistoricalOption {
	return func(o *historicalOptions) {
		o.locker = locker
	}
}

// HistoricalRepository keeps every state of an entity as a row bounded by
// effective and expired timestamps. Rows are never updated in place apart
// from setting their expiry, and never physically deleted.
type HistoricalRepository[T any, PT interface {
	*T
	entity.Entity[PK]
	entity.Historical
}, PK comparable] struct {
	*GenericRepository[T, PT, PK]
	history historicalOptions
}

func NewHistorical[T any, PT interface {
	*T
	entity.Entity[PK]
	entity.Historical
}, PK comparable](db database.DB, descriptor *entity.Descriptor, logger ectologger.Logger, opts ...HistoricalOption) (*HistoricalRepository[T, PT, PK], error) {
	if descriptor == nil || !descriptor.IsHistorical() {
		return nil, apperrors.InvalidArgument("historical repository needs a descriptor with history columns")
	}

	generic, err := New[T, PT, PK](db, descriptor, logger)
	if err != nil {
		return nil, err
	}

	o := historicalOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &HistoricalRepository[T, PT, PK]{
		GenericRepository: generic,
		history:           o,
	}, nil
}

// now is UTC at the precision postgres stores, so a value written as one
// row's expiry reads back equal to the next row's effective time.
func (r *HistoricalRepository[T, PT, PK]) now() time.Time {
	return r.history.clock().UTC().Truncate(time.Microsecond)
}

func (r *HistoricalRepository[T, PT, PK]) spec() *entity.HistorySpec {
	return r.descriptor.History
}

// Create starts a new chain with e as its open row.
func (r *HistoricalRepository[T, PT, PK]) Create(ctx context.Context, e PT) (PT, error) {
	if e == nil {
		return nil, apperrors.InvalidArgument("cannot create a nil %s", r.descriptor.Type)
	}

	e.SetEffectiveAt(r.now())
	e.SetExpiredAt(nil)

	created, err := r.GenericRepository.Create(ctx, e)
	r.count("create", err)
	return created, err
}

// Update on a historical entity is UpdateCurrent.
func (r *HistoricalRepository[T, PT, PK]) Update(ctx context.Context, e PT) (PT, error) {
	return r.UpdateCurrent(ctx, e)
}

// GetCurrent returns the open row of every chain.
func (r *HistoricalRepository[T, PT, PK]) GetCurrent(ctx context.Context) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoricalRepository.GetCurrent", tracing.Table(r.descriptor.Table))
	defer span.End()

	return r.Query(ctx, query.Options{}, r.openRow())
}

// GetCurrentByName returns the open row of the chain with the given business
// key, or nil. Several open rows are logged and the first is returned.
func (r *HistoricalRepository[T, PT, PK]) GetCurrentByName(ctx context.Context, name any) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoricalRepository.GetCurrentByName", tracing.Table(r.descriptor.Table))
	defer span.End()

	if r.spec().BusinessKey == "" {
		return nil, apperrors.InvalidArgument("%s has no business key", r.descriptor.Table)
	}

	current, err := r.GetUnique(ctx, query.Equals(query.Attr(r.spec().BusinessKey), name), r.openRow())
	if err != nil || current == nil {
		return nil, err
	}
	return current, nil
}

// GetHistory returns every row of a chain, oldest first.
func (r *HistoricalRepository[T, PT, PK]) GetHistory(ctx context.Context, name any) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoricalRepository.GetHistory", tracing.Table(r.descriptor.Table))
	defer span.End()

	if r.spec().BusinessKey == "" {
		return nil, apperrors.InvalidArgument("%s has no business key", r.descriptor.Table)
	}

	return r.Query(ctx,
		query.Options{OrderBy: []query.Path{query.Attr(r.spec().EffectiveAt), query.Attr(r.descriptor.IDColumn)}},
		query.Equals(query.Attr(r.spec().BusinessKey), name),
	)
}

// UpdateCurrent replaces the open row of e's chain with a new row holding e's
// values. Inside one transaction it expires the open row at now and inserts
// the new row effective from the same instant, carrying the business key
// forward. On success e takes the new row's identifier and timestamps.
func (r *HistoricalRepository[T, PT, PK]) UpdateCurrent(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoricalRepository.UpdateCurrent", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot update a nil %s", r.descriptor.Type)
	}

	var now time.Time
	var next T
	var release func(context.Context) error

	err := r.db.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := r.byID(ctx, e.GetID(), false)
		if err != nil {
			return err
		}
		if stored == nil {
			return apperrors.NotFound("%s %v does not exist", r.descriptor.Table, e.GetID())
		}

		chain, key, err := r.chain(stored)
		if err != nil {
			return err
		}
		span.SetAttributes(tracing.Chain(key))

		if release, err = r.lockChain(ctx, key); err != nil {
			return err
		}

		if _, now, err = r.expireOpen(ctx, chain, key); err != nil {
			return err
		}

		next = *e
		if err := r.carryForward(&next, stored); err != nil {
			return err
		}
		PT(&next).SetID(r.zeroID())
		PT(&next).SetEffectiveAt(now)
		PT(&next).SetExpiredAt(nil)

		if _, err := r.GenericRepository.Create(ctx, &next); err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.PreconditionFailed("%s chain %s was updated concurrently", r.descriptor.Table, key)
			}
			return err
		}
		return nil
	})
	r.release(ctx, release)
	r.count("update", err)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	e.SetID(PT(&next).GetID())
	e.SetEffectiveAt(now)
	e.SetExpiredAt(nil)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"table": r.descriptor.Table,
		"id":    e.GetID(),
	}).Debugf("Updated current %s", r.descriptor.Table)
	return &next, nil
}

// Remove expires the open row of e's chain without a replacement and returns
// it. A chain without an open row, or an unknown identifier, returns nil.
func (r *HistoricalRepository[T, PT, PK]) Remove(ctx context.Context, e PT) (PT, error) {
	ctx, span := tracing.StartSpan(ctx, "HistoricalRepository.Remove", tracing.Table(r.descriptor.Table))
	defer span.End()

	if e == nil {
		return nil, apperrors.InvalidArgument("cannot remove a nil %s", r.descriptor.Type)
	}

	var expired PT
	var release func(context.Context) error

	err := r.db.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := r.byID(ctx, e.GetID(), false)
		if err != nil || stored == nil {
			return err
		}

		chain, key, err := r.chain(stored)
		if err != nil {
			return err
		}
		span.SetAttributes(tracing.Chain(key))

		if release, err = r.lockChain(ctx, key); err != nil {
			return err
		}

		open, now, err := r.expireOpen(ctx, chain, key)
		if err != nil {
			if apperrors.IsPreconditionFailed(err) {
				return nil
			}
			return err
		}

		open.SetExpiredAt(&now)
		expired = open
		return nil
	})
	r.release(ctx, release)
	r.count("remove", err)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if expired == nil {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"table": r.descriptor.Table,
			"id":    e.GetID(),
		}).Debug("nothing to remove")
	}
	return expired, nil
}

// chain returns the predicate selecting every row of stored's chain and a
// key naming it. Without a business key a row is its own chain.
func (r *HistoricalRepository[T, PT, PK]) chain(stored PT) (query.Predicate, string, error) {
	column := r.spec().BusinessKey
	if column == "" {
		column = r.descriptor.IDColumn
	}

	value, err := r.descriptor.Value(stored, column)
	if err != nil {
		return nil, "", err
	}
	return query.Equals(query.Attr(column), value), fmt.Sprintf("%s:%v", r.descriptor.Table, value), nil
}

func (r *HistoricalRepository[T, PT, PK]) openRow() query.Predicate {
	return query.Equals(query.Attr(r.spec().ExpiredAt), nil)
}

// expireOpen locks the open rows of a chain and expires them. It returns the
// first open row as read before the update and the expiry instant, which is
// taken once the rows are locked and never precedes their effective time.
func (r *HistoricalRepository[T, PT, PK]) expireOpen(ctx context.Context, chain query.Predicate, key string) (PT, time.Time, error) {
	open, err := r.Query(ctx, query.Options{ForUpdate: true}, chain, r.openRow())
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(open) == 0 {
		return nil, time.Time{}, apperrors.PreconditionFailed("%s chain %s has no current row", r.descriptor.Table, key)
	}

	now := r.now()
	for i := range open {
		if effective := PT(&open[i]).GetEffectiveAt(); effective.After(now) {
			now = effective
		}
	}
	if len(open) > 1 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"table": r.descriptor.Table,
			"chain": key,
			"open":  len(open),
		}).Warnf("chain %s has %d open rows, expiring all of them", key, len(open))
	}

	ids := make([]any, len(open))
	for i := range open {
		ids[i] = PT(&open[i]).GetID()
	}

	q, args := database.ExpireRows(r.descriptor.Table, r.spec().ExpiredAt, now, r.descriptor.IDColumn, ids)
	if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("chain", key).Error("failed to expire current row")
		return nil, time.Time{}, err
	}
	return &open[0], now, nil
}

func (r *HistoricalRepository[T, PT, PK]) carryForward(next *T, stored PT) error {
	column := r.spec().BusinessKey
	if column == "" {
		return nil
	}
	value, err := r.descriptor.Value(stored, column)
	if err != nil {
		return err
	}
	return r.descriptor.SetValue(next, column, value)
}

func (r *HistoricalRepository[T, PT, PK]) lockChain(ctx context.Context, key string) (func(context.Context) error, error) {
	if r.history.locker == nil {
		return nil, nil
	}
	release, err := r.history.locker.LockChain(ctx, key)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("chain", key).Error("failed to lock chain")
		return nil, err
	}
	return release, nil
}

func (r *HistoricalRepository[T, PT, PK]) release(ctx context.Context, release func(context.Context) error) {
	if release == nil {
		return
	}
	if err := release(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to release chain lock")
	}
}

func (r *HistoricalRepository[T, PT, PK]) count(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.HistoricalTransitionsTotal.WithLabelValues(r.descriptor.Table, operation, status).Inc()
}
