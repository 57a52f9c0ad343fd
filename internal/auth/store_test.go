package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))

	cred := Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(cred))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestStoreOmitsZeroExpiry(t *testing.T) {
	file := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(file)
	require.NoError(t, store.Save(Credential{AccessToken: "a"}))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "expiry")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Expiry.IsZero())
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStoreSaveCreatesParentDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state", "token.json"))
	require.NoError(t, store.Save(Credential{AccessToken: "a"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.AccessToken)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(Credential{AccessToken: "a"}))

	require.NoError(t, store.Delete())
	_, err := store.Load()
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Deleting again is not an error.
	require.NoError(t, store.Delete())
}

func TestCredentialExpired(t *testing.T) {
	assert.False(t, Credential{AccessToken: "a"}.Expired(), "missing expiry is treated as usable")
	assert.False(t, Credential{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}.Expired())
	assert.True(t, Credential{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)}.Expired())
}
