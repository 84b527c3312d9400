package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisLockTTL   = 30 * time.Second
	defaultRedisRetryWait = 25 * time.Millisecond
	redisKeyPrefix        = "walletcore:lock:"
)

// ErrLockLost is returned to the release hook's logger when the key expired
// or was taken over before release.
var ErrLockLost = errors.New("lock: lease lost before release")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client    redis.UniversalClient
	ttl       time.Duration
	retryWait time.Duration
	onRelease func(key string, err error)
}

// NewRedisLocker builds a RedisLocker; ttl <= 0 falls back to 30s.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, retryWait: defaultRedisRetryWait}
}

// OnRelease installs a hook invoked when a release fails.
func (l *RedisLocker) OnRelease(fn func(key string, err error)) {
	if l != nil {
		l.onRelease = fn
	}
}

// Lock polls SET NX PX until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int64()
		if err == nil && n == 0 {
			err = ErrLockLost
		}
		if err != nil && l.onRelease != nil {
			l.onRelease(key, err)
		}
	}, nil
}
