package credential

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// redisLockExpiry bounds how long a crashed refresher can hold the lock.
const redisLockExpiry = 30 * time.Second

// RedisRefreshLock implements RefreshLock over redsync so managers in
// separate processes sharing a storage backend still refresh each
// credential at most once at a time.
type RedisRefreshLock struct {
	rs *redsync.Redsync
}

// NewRedisRefreshLock wraps a redis client in a distributed lock
// provider.
func NewRedisRefreshLock(client *redis.Client) *RedisRefreshLock {
	return &RedisRefreshLock{rs: redsync.New(goredis.NewPool(client))}
}

// Lock acquires the distributed mutex for one credential id.
func (l *RedisRefreshLock) Lock(ctx context.Context, id types.CredentialID) (Unlocker, error) {
	mutex := l.rs.NewMutex(
		"nebula:credential:refresh:"+id.String(),
		redsync.WithExpiry(redisLockExpiry),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, types.WrapRetryableError(types.CONFLICT, "acquiring refresh lock", err)
	}
	return redisUnlocker{mutex: mutex}, nil
}

type redisUnlocker struct {
	mutex *redsync.Mutex
}

func (u redisUnlocker) Unlock(ctx context.Context) error {
	if _, err := u.mutex.UnlockContext(ctx); err != nil {
		return types.WrapError(types.INTERNAL, "releasing refresh lock", err)
	}
	return nil
}
