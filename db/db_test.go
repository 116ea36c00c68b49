package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meepleboard/meeple/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitDB tests the initialization of the database.
// It sets up a temporary directory, initializes the database, and checks if the database file is created successfully.
func TestInitDB(t *testing.T) {
	tempDir := t.TempDir()
	db.Path = filepath.Join(tempDir, ".meeple/credentials.db")
	err := db.InitDB()
	assert.NoError(t, err, "InitDB should not return an error")

	_, statErr := os.Stat(db.Path)
	assert.NoError(t, statErr, "Database file should exist")

	info, err := os.Stat(filepath.Dir(db.Path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm(), "Credential directory should be private")

	require.NotNil(t, db.GetDB())
	assert.True(t, db.GetDB().Migrator().HasTable(&db.Secret{}))

	closeErr := db.CloseDB()
	assert.NoError(t, closeErr, "CloseDB should not return an error")
}

// TestCloseDB_WithoutInit ensures CloseDB tolerates a nil connection.
func TestCloseDB_WithoutInit(t *testing.T) {
	db.Db = nil
	assert.NoError(t, db.CloseDB())
}
