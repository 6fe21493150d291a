package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestLoadOrNewMissingFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "session.json")

	s, err := LoadOrNew(fileName)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ClientUUID)
	assert.Nil(t, s.Token())
	assert.False(t, s.Valid())

	_, err = os.Stat(fileName)
	assert.True(t, os.IsNotExist(err), "nothing written before login")
}

func TestSetTokenSavesAndReloads(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "session.json")
	expiry := time.Now().Add(time.Hour).Round(time.Second)

	s, err := LoadOrNew(fileName)
	require.NoError(t, err)
	s.Email = "owner@example.com"
	s.AccountID = 1234
	s.Tier = "u011"
	require.NoError(t, s.SetToken(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}))
	assert.True(t, s.Valid())

	info, err := os.Stat(fileName)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadOrNew(fileName)
	require.NoError(t, err)
	assert.Equal(t, s.ClientUUID, loaded.ClientUUID)
	assert.Equal(t, "owner@example.com", loaded.Email)
	assert.Equal(t, int64(1234), loaded.AccountID)
	assert.Equal(t, "u011", loaded.Tier)

	tok := loaded.Token()
	require.NotNil(t, tok)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestValidNeedsMinimumLifetime(t *testing.T) {
	s := NewState()
	require.NoError(t, s.SetToken(&oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Second * 30)}))
	assert.False(t, s.Valid())

	s.MinAccessTokenValidity = time.Second
	assert.True(t, s.Valid())
}

func TestStringHidesSecrets(t *testing.T) {
	s := NewState()
	require.NoError(t, s.SetToken(&oauth2.Token{AccessToken: "super-secret-access", RefreshToken: "super-secret-refresh"}))

	str := s.String()
	assert.NotContains(t, str, "super-secret-access")
	assert.NotContains(t, str, "super-secret-refresh")
	assert.Contains(t, str, hashOf("super-secret-access"))
}
