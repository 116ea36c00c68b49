package sealer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meepleboard/meeple/pkg/sealer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := sealer.New([]byte("correct horse battery staple"))
	require.NoError(t, err)

	sealed, err := s.Seal("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "payload")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.payload.sig", plain)
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	s, err := sealer.New([]byte("secret"))
	require.NoError(t, err)

	a, err := s.Seal("true")
	require.NoError(t, err)
	b, err := s.Seal("true")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_RejectsForeignKeyAndGarbage(t *testing.T) {
	s1, err := sealer.New([]byte("one"))
	require.NoError(t, err)
	s2, err := sealer.New([]byte("two"))
	require.NoError(t, err)

	sealed, err := s1.Seal("value")
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.ErrorIs(t, err, sealer.ErrMalformed)

	_, err = s1.Open("not base64 !!")
	assert.ErrorIs(t, err, sealer.ErrMalformed)

	_, err = s1.Open("c2hvcnQ=")
	assert.ErrorIs(t, err, sealer.ErrMalformed)
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := sealer.New(nil)
	assert.ErrorIs(t, err, sealer.ErrEmptySecret)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.key")

	first, err := sealer.LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, sealer.KeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := sealer.LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateKey_TooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.key")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	_, err := sealer.LoadOrCreateKey(path)
	assert.Error(t, err)
}
