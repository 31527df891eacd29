package session

import (
	"context"
	"fmt"

	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisRepo persists the session in Redis so several console processes on one host share it
type RedisRepo struct {
	rdb *redis.Client
}

var _ Repo = (*RedisRepo)(nil)

type RedisOptions struct {
	Addr     string
	DB       int
	Password string
}

func NewRedisRepo(opts RedisOptions) *RedisRepo {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	return &RedisRepo{rdb: rdb}
}

// NewRedisRepoFromClient wraps an existing client
func NewRedisRepoFromClient(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRepo) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		log.Err(err).Str("key", key).Msg("redis GET failed")
		return nil, fmt.Errorf("[RedisRepo] get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisRepo) Save(ctx context.Context, key string, data []byte) error {
	if err := r.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		log.Err(err).Str("key", key).Msg("redis SET failed")
		return fmt.Errorf("[RedisRepo] set %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("[RedisRepo] del %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) Close() error {
	return r.rdb.Close()
}
