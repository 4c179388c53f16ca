package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when trying to release a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

const (
	DefaultLockTTL     = 30 * time.Second
	DefaultLockTimeout = 5 * time.Second
	maxBackoff         = 500 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock is a held chain lock.
type Lock struct {
	client *Client
	key    string
	value  string
}

// ChainLocker serializes updates of one historical chain across processes.
// The TTL bounds how long a crashed holder blocks the chain.
type ChainLocker struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
}

type LockerOption func(*ChainLocker)

func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *ChainLocker) {
		l.ttl = ttl
	}
}

// WithLockTimeout bounds how long LockChain waits for a held lock.
func WithLockTimeout(timeout time.Duration) LockerOption {
	return func(l *ChainLocker) {
		l.timeout = timeout
	}
}

func NewChainLocker(client *Client, keyPrefix string, opts ...LockerOption) *ChainLocker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	l := &ChainLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       DefaultLockTTL,
		timeout:   DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire makes one attempt at the lock.
func (l *ChainLocker) Acquire(ctx context.Context, key string) (*Lock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)
	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until the
// timeout passes or ctx is done.
func (l *ChainLocker) TryAcquire(ctx context.Context, key string) (*Lock, error) {
	deadline := time.Now().Add(l.timeout)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// LockChain acquires the lock for key and returns its release function.
func (l *ChainLocker) LockChain(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.TryAcquire(ctx, key)
	if err != nil {
		l.client.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("failed to lock chain")
		return nil, err
	}
	return lock.Release, nil
}

// Release deletes the lock if this holder still owns it.
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}
