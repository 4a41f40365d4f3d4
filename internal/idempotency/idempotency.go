// Package idempotency не даёт повторно выполнить запрос с тем же Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrDuplicate  = errors.New("duplicate request")
	ErrInvalidKey = errors.New("idempotency key must be a UUID")
)

// Store - часть redis.Cmdable, которой пользуется Guard.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Store = (*redis.Client)(nil)

// Guard резервирует ключи в Redis на ttl. Пустой Guard (nil store) пропускает всё.
type Guard struct {
	store  Store
	prefix string
	ttl    time.Duration
}

func NewGuard(store Store, prefix string, ttl time.Duration) *Guard {
	return &Guard{store: store, prefix: prefix, ttl: ttl}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.store != nil
}

// Reserve занимает ключ за аккаунтом. Повторный вызов до истечения ttl
// возвращает ErrDuplicate. Пустой ключ ничего не резервирует.
func (g *Guard) Reserve(ctx context.Context, accountID int64, key string) error {
	const op = "idempotency.Guard.Reserve"

	if key == "" || !g.Enabled() {
		return nil
	}
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidKey)
	}

	ok, err := g.store.SetNX(ctx, g.redisKey(accountID, key), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return nil
}

// Release освобождает ключ, если запрос под ним не выполнился.
func (g *Guard) Release(ctx context.Context, accountID int64, key string) error {
	const op = "idempotency.Guard.Release"

	if key == "" || !g.Enabled() {
		return nil
	}
	if err := g.store.Del(ctx, g.redisKey(accountID, key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Guard) redisKey(accountID int64, key string) string {
	return fmt.Sprintf("%s:idempotency:%d:%s", g.prefix, accountID, key)
}
