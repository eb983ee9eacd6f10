package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/imputr/internal/timely"
)

var _ timely.TokenStore = (*DB)(nil)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadMissingToken(t *testing.T) {
	db := openTestDB(t)

	token, err := db.LoadToken("nobody")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestSaveAndLoadToken(t *testing.T) {
	db := openTestDB(t)
	expires := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveToken("k", &timely.Token{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}))
	token, err := db.LoadToken("k")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "a1", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.True(t, expires.Equal(token.ExpiresAt))

	require.NoError(t, db.SaveToken("k", &timely.Token{AccessToken: "a2"}))
	token, err = db.LoadToken("k")
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
	assert.Empty(t, token.RefreshToken)
	assert.True(t, token.ExpiresAt.IsZero())
}

func TestDeleteToken(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveToken("k", &timely.Token{AccessToken: "a"}))
	require.NoError(t, db.DeleteToken("k"))

	token, err := db.LoadToken("k")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestReopenKeepsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveToken("k", &timely.Token{AccessToken: "a"}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	token, err := db.LoadToken("k")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "a", token.AccessToken)
}
