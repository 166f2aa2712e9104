package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss — ключ отсутствует или истёк.
var ErrMiss = errors.New("cache: miss")

// Store — минимальный контракт кэша, который нужен сервисам.
// Значения — сериализованный JSON.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Redis — реализация Store поверх go-redis.
type Redis struct {
	c *redis.Client
}

func NewRedis(addr, password string, db int) *Redis {
	return &Redis{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// Ping — проверка соединения для /readyz.
func (r *Redis) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.c.Close() }
