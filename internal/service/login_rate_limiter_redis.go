package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLoginFailScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

const redisLoginTimeout = 500 * time.Millisecond

type redisLoginClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisLoginRateLimiter comparte el conteo de fallos entre instancias. La ventana
// arranca con el primer fallo y se cierra por TTL.
type redisLoginRateLimiter struct {
	client redisLoginClient
	window time.Duration
	max    int
	prefix string
}

func NewRedisLoginRateLimiter(client *redis.Client, window time.Duration, max int) LoginRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisLoginRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "auth:login:fail:",
	}
}

// Blocked no bloquea si redis falla.
func (l *redisLoginRateLimiter) Blocked(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisLoginTimeout)
	defer cancel()
	count, err := l.client.Get(ctx, l.prefix+key).Int()
	if err != nil {
		return false
	}
	return count >= l.max
}

func (l *redisLoginRateLimiter) Fail(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisLoginTimeout)
	defer cancel()
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	_ = l.client.Eval(ctx, redisLoginFailScript, []string{l.prefix + key}, seconds).Err()
}

func (l *redisLoginRateLimiter) Reset(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisLoginTimeout)
	defer cancel()
	_ = l.client.Del(ctx, l.prefix+key).Err()
}
