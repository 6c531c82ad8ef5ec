package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/retry"
)

const redisKeyPrefix = "governance:lock:"

// heldError reports a key held by another caller. It is retryable so
// acquisition keeps polling until the retry budget runs out.
type heldError struct{}

func (heldError) Error() string     { return "lock is held by another caller" }
func (heldError) IsRetryable() bool { return true }

// ErrLockHeld is returned when the retry budget ran out while the key was held.
var ErrLockHeld error = heldError{}

// releaseScript deletes the key only if it still carries our token, so a
// hold that outlived its TTL never releases a later holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process pointed at the same Redis.
// A hold expires after ttl even if release is never called.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  *retry.Config
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker. A nil retryCfg uses retry.LockConfig.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, retryCfg *retry.Config, logger *zap.Logger) *RedisLocker {
	if retryCfg == nil {
		retryCfg = retry.LockConfig()
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  retryCfg,
		logger: logger.Named("locks"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	err := retry.DoIfRetryable(ctx, l.retry, func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrLockHeld
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				// The TTL frees the key eventually.
				l.logger.Warn("Failed to release lock",
					zap.String("key", key),
					zap.Error(err))
			}
		})
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
