// Package redisstore holds the redis backed coordination helpers: a
// distributed lock for the expiry job and idempotency keys for checkout.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	lockPrefix        = "lock:"
	idempotencyPrefix = "idempotent-key:"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type Locker struct {
	rdb redis.UniversalClient
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	return &Locker{rdb: rdb}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	lockKey := lockPrefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		res, err := releaseScript.Run(ctx, l.rdb, []string{lockKey}, token).Int()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("failed to release lock")
			return
		}
		if res == 0 {
			log.Ctx(ctx).Warn().Str("lock", key).Msg("lock expired before release")
		}
	}
	return release, true, nil
}

type IdempotencyStore struct {
	rdb redis.UniversalClient
}

func NewIdempotencyStore(rdb redis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, idempotencyPrefix+key, "exists", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, idempotencyPrefix+key).Err()
}

var (
	_ infra.LockerInterface           = (*Locker)(nil)
	_ infra.IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
