package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock shared by every engine instance.
// A lock whose holder dies expires after TTL.
type Redis struct {
	client *redis.Client
	logger *zap.SugaredLogger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a distributed locker
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *Redis {
	return &Redis{
		client: client,
		logger: logger,
		prefix: "kycengine:lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Lock polls until the key is acquired or ctx is done
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := r.prefix + key

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{full}, token).Err(); err != nil {
				r.logger.Warnw("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
