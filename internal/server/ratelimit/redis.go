package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript выполняет INCR и установку TTL одной атомарной операцией.
// TTL ставится только при создании ключа, поэтому окно не продлевается.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisStore хранит счетчики в Redis, общем для всех экземпляров сервиса
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore создает хранилище поверх Redis клиента
// prefix добавляется к каждому ключу (например "warehouse:rl:")
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Increment атомарно увеличивает счетчик в Redis
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis increment failed: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis script reply: %v", res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		// Ключ без TTL (-1) или уже удален (-2): считаем окно полным
		ttl = window
	}

	return res[0], ttl, nil
}
