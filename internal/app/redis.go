package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func normalizePrefix(prefix string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "approvals"
	}
	return trimmed
}

// RedisRateLimiter counts hits in fixed windows shared by every instance.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: normalizePrefix(prefix) + ":ratelimit"}
}

// ConsumeRateLimit records one hit for subject under scope. It returns the hits seen in the
// current window and the whole seconds until the window resets. A non-positive limit or an
// empty subject disables limiting.
func (r *RedisRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if r == nil || r.client == nil || limit <= 0 || scope == "" || subject == "" {
		return 0, 0, nil
	}
	if window < time.Second {
		window = time.Second
	}

	key := r.prefix + ":" + scope + ":" + subject
	var (
		hits *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	// MULTI keeps the increment and the first-hit expiry atomic.
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit %s: %w", scope, err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	return int(hits.Val()), int(math.Ceil(remaining.Seconds())), nil
}

// RedisRunLock is a best-effort mutual exclusion across service instances.
type RedisRunLock struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRunLock(client redis.UniversalClient, prefix string) *RedisRunLock {
	return &RedisRunLock{client: client, prefix: normalizePrefix(prefix) + ":lock"}
}

// Acquire takes name for ttl. When another holder owns it, acquired is false and release is nil.
func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
