package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLocker serializes executions of a single trigger across processes.
type RunLocker interface {
	// Acquire returns ok=false when another run holds the lock. The caller
	// must invoke release exactly once when ok is true.
	Acquire(ctx context.Context, triggerID int64) (release func(), ok bool, err error)
}

// RedisRunLock is a SET NX + TTL lock. The TTL bounds how long a crashed run
// blocks the trigger; normal runs release explicitly.
type RedisRunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRunLock(rdb *redis.Client, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisRunLock{rdb: rdb, ttl: ttl}
}

var _ RunLocker = (*RedisRunLock)(nil)

func (l *RedisRunLock) Acquire(ctx context.Context, triggerID int64) (func(), bool, error) {
	key := fmt.Sprintf("runlock:trigger:%d", triggerID)
	ok, err := l.rdb.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// release must survive a cancelled run context
		_ = l.rdb.Del(context.Background(), key).Err()
	}
	return release, true, nil
}
