package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const lockPrefix = "job_lock:"

// unlockScript deletes the lock only while it still carries the caller's token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepo implements the cross-instance tick lock for periodic jobs.
type LockRepo struct {
	client *goredis.Client
}

func NewLockRepo(client *goredis.Client) *LockRepo {
	return &LockRepo{client: client}
}

func (r *LockRepo) TryLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(token) == "" || ttl <= 0 {
		return false, fmt.Errorf("invalid lock payload")
	}

	ok, err := r.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire job lock: %w", err)
	}
	return ok, nil
}

func (r *LockRepo) Unlock(ctx context.Context, name, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := unlockScript.Run(ctx, r.client, []string{lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("release job lock: %w", err)
	}
	return nil
}

func lockKey(name string) string {
	return lockPrefix + name
}
