package db_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/meepleboard/meeple/db"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reverseCodec is deterministic so redismock can match exact values.
type reverseCodec struct{}

func (reverseCodec) Seal(s string) (string, error) { return "sealed:" + reverse(s), nil }
func (reverseCodec) Open(s string) (string, error) {
	return reverse(strings.TrimPrefix(s, "sealed:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func setupRedisStore() (*db.RedisStore, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	return db.NewRedisStore(client, "", reverseCodec{}), mock
}

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()
	store, mock := setupRedisStore()

	t.Run("value exists", func(t *testing.T) {
		mock.ExpectGet(db.DefaultRedisPrefix + "secure_token").SetVal("sealed:cba")
		v, err := store.Get(ctx, "secure_token")
		assert.NoError(t, err)
		assert.Equal(t, "abc", v)
	})

	t.Run("value missing", func(t *testing.T) {
		mock.ExpectGet(db.DefaultRedisPrefix + "secure_token").RedisNil()
		v, err := store.Get(ctx, "secure_token")
		assert.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectGet(db.DefaultRedisPrefix + "secure_token").SetErr(redis.ErrClosed)
		_, err := store.Get(ctx, "secure_token")
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Set(t *testing.T) {
	ctx := context.Background()
	store, mock := setupRedisStore()

	t.Run("successful save", func(t *testing.T) {
		mock.ExpectSet(db.DefaultRedisPrefix+"remember_me", "sealed:eurt", 0).SetVal("OK")
		assert.NoError(t, store.Set(ctx, "remember_me", "true"))
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectSet(db.DefaultRedisPrefix+"remember_me", "sealed:eurt", 0).SetErr(redis.ErrClosed)
		assert.ErrorIs(t, store.Set(ctx, "remember_me", "true"), redis.ErrClosed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := db.NewRedisStore(client, "test:", reverseCodec{})

	t.Run("successful delete", func(t *testing.T) {
		mock.ExpectDel("test:secure_refresh_token").SetVal(1)
		assert.NoError(t, store.Delete(ctx, "secure_refresh_token"))
	})

	t.Run("absent key", func(t *testing.T) {
		mock.ExpectDel("test:secure_refresh_token").SetVal(0)
		assert.NoError(t, store.Delete(ctx, "secure_refresh_token"))
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectDel("test:secure_refresh_token").SetErr(redis.ErrClosed)
		assert.ErrorIs(t, store.Delete(ctx, "secure_refresh_token"), redis.ErrClosed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_HealthCheck(t *testing.T) {
	store, mock := setupRedisStore()
	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, store.HealthCheck(context.Background()))
}
