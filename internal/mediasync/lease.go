package mediasync

import (
	"context"
	"errors"
	"time"

	"github.com/sasagram/streamlog/internal/distributedlock"
)

const (
	LeaseKey = "locks:media-sync"

	// LeaseTimeout outlives a sync bounded by the upstream and query timeouts.
	LeaseTimeout = 45 * time.Second
)

// Lease guards a sync so concurrent requests do not all hit the platform.
type Lease interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

type redisLease struct {
	dl *distributedlock.DistributedLock
}

func NewRedisLease(dl *distributedlock.DistributedLock) Lease {
	return &redisLease{dl: dl}
}

func (rl *redisLease) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	lock, err := rl.dl.AcquireLock(ctx, key)
	if errors.Is(err, distributedlock.ErrLockAlreadyAcquired) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return func() { _ = lock.Release(context.Background()) }, true, nil
}

// NoLease always grants the lease. Used when redis is not configured, which
// accepts redundant syncs.
type NoLease struct{}

func (NoLease) TryAcquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}
