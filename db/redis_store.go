package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultRedisPrefix namespaces credential keys in a shared Redis.
const DefaultRedisPrefix = "meeple:credentials:"

// NewRedisClient opens a go-redis client for the credential store.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisStore is a credential store for hosts where several processes share
// one session (CI agents, containers). Values are sealed like SecretStore's.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  Codec
}

// NewRedisStore wraps client. An empty prefix falls back to DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string, codec Codec) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, codec: codec}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to read secret from redis")
		return "", err
	}
	value, err := s.codec.Open(val)
	if err != nil {
		return "", fmt.Errorf("failed to open secret %q: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.codec.Seal(value)
	if err != nil {
		return fmt.Errorf("failed to seal secret %q: %w", key, err)
	}
	return s.client.Set(ctx, s.prefix+key, sealed, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// HealthCheck pings the server.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
