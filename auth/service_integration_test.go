package auth_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/meepleboard/meeple/auth"
	"github.com/meepleboard/meeple/db"
	"github.com/meepleboard/meeple/pkg/sealer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestService_WithSQLiteStore runs the refresh flow against the real
// encrypted SQLite backend.
func TestService_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "credentials.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&db.Secret{}))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := sealer.New([]byte("integration"))
	require.NoError(t, err)
	store := db.NewSecretStore(gdb, s)

	refresher := &fakeRefresher{pair: auth.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}}
	svc := newService(store, refresher)

	require.NoError(t, svc.StoreTokens(ctx, tokenExpiringAt(t, fixedNow.Add(-10*time.Second)), "rt1", true))

	got, err := svc.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", got)
	assert.Equal(t, []string{"rt1"}, refresher.calls)

	rt, err := store.Get(ctx, auth.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt2", rt)

	require.NoError(t, svc.ClearAll(ctx))
	for _, key := range []string{auth.KeyAccessToken, auth.KeyRefreshToken, auth.KeyRememberMe, auth.KeyCurrentUser} {
		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, v, key)
	}
}
