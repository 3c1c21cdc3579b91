// Package distributedlock is a redis SETNX lease shared by every process
// that talks to the same redis.
package distributedlock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
)

var (
	ErrLockAlreadyAcquired = errors.New("lock already acquired")
	ErrLockExpired         = errors.New("releasing an expired lock")
)

// releaseScript deletes the key only while it still holds the owner's token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type DistributedLock struct {
	client  *redis.Client
	release *redis.Script
	timeout time.Duration
}

func New(client *redis.Client, timeout time.Duration) (*DistributedLock, error) {
	script := redis.NewScript(releaseScript)
	if err := script.Load(context.Background(), client).Err(); err != nil {
		return nil, err
	}

	return &DistributedLock{
		client:  client,
		release: script,
		timeout: timeout,
	}, nil
}

// AcquireLock takes key for the configured timeout, or fails straight away
// with ErrLockAlreadyAcquired.
func (d *DistributedLock) AcquireLock(ctx context.Context, key string) (*Lock, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	ok, err := d.client.SetNX(ctx, key, token.String(), d.timeout).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockAlreadyAcquired
	}

	return &Lock{owner: d, key: key, token: token.String()}, nil
}

type Lock struct {
	owner *DistributedLock
	key   string
	token string
}

// Release gives the key back. A lock that outlived its timeout, and may now
// belong to someone else, is left alone and reported as ErrLockExpired.
func (l *Lock) Release(ctx context.Context) error {
	deleted, err := l.owner.release.Run(ctx, l.owner.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrLockExpired
	}

	return nil
}
