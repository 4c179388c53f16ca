package database

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
)

var ErrNoTransaction = errors.New("advisory lock requires a transaction on the context")

// AdvisoryLocker serializes work on a key with a transaction scoped postgres
// advisory lock. The lock is released when the transaction ends.
type AdvisoryLocker struct {
	logger ectologger.Logger
}

func NewAdvisoryLocker(logger ectologger.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{logger: logger}
}

func (l *AdvisoryLocker) LockChain(ctx context.Context, key string) (func(context.Context) error, error) {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return nil, ErrNoTransaction
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		l.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("failed to take advisory lock")
		return nil, err
	}

	l.logger.WithContext(ctx).Debugf("Acquired advisory lock: %s", key)
	return func(context.Context) error { return nil }, nil
}
