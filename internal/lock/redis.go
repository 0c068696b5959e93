package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "docvault:lock:"
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost is logged when a release finds the lock already expired.
var ErrLockLost = errors.New("lock expired before release")

// Redis is a distributed lock on SET NX PX. The TTL bounds how long a crashed
// holder can block others.
type Redis struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	rkey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, rkey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			n, err := releaseScript.Run(ctx, r.rdb, []string{rkey}, token).Int()
			switch {
			case err != nil:
				r.logger.Error("lock release failed", "key", key, "error", err)
			case n == 0:
				r.logger.Warn("lock release skipped", "key", key, "error", ErrLockLost)
			}
		})
	}, nil
}

// Ping checks connectivity to the redis server.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
