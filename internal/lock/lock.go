package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/issue-router/internal/infra"
)

// ErrLocked — задачу уже маршрутизирует другой обработчик.
var ErrLocked = errors.New("issue is locked by another run")

type Locker interface {
	// Acquire берет блокировку на задачу. Возвращенный release снимает только свою блокировку.
	Acquire(ctx context.Context, issue int) (release func(context.Context) error, err error)
}

// releaseScript удаляет ключ, только если в нем наш токен
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type RedisLocker struct {
	rdb        redisClient
	repository string
	ttl        time.Duration
}

func NewRedisLocker(rdb redisClient, repository string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{rdb: rdb, repository: repository, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, issue int) (func(context.Context) error, error) {
	key := infra.GetIssueLockKey(l.repository, issue)
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}

// NopLocker используется, когда Redis не настроен
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, int) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
