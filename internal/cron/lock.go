package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Minute

// Locker hands out one lease per job name across every cron-worker replica.
type Locker interface {
	// TryLock returns ok=false when another replica holds the job. release is
	// non-nil only when ok is true.
	TryLock(ctx context.Context, job string) (release func(context.Context) error, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLocker leases jobs with SET NX and frees them with an owner-checked delete,
// so a run that outlives its TTL cannot drop the next holder's lease.
type RedisLocker struct {
	store lockStore
	key   func(job string) string
	ttl   time.Duration
}

// NewRedisLocker builds a locker. key maps a job name to its redis key.
func NewRedisLocker(store lockStore, key func(job string) string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == nil {
		return nil, errors.New("lock key builder is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	key := l.key(job)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if _, err := l.store.CompareAndDelete(ctx, key, owner); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
