package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkboard/pkg/types"
)

func openTestStore(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestLoadEmptyStore(t *testing.T) {
	m := openTestStore(t)

	identity, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, identity, "empty store yields no identity, not an error")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := openTestStore(t)

	saved := &types.Identity{
		RoomID:   "AB12CD",
		UserID:   "user-1",
		Token:    "tok-secret",
		Nickname: "alice",
		IsAdmin:  true,
	}
	require.NoError(t, m.Save(saved))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.RoomID, loaded.RoomID)
	assert.Equal(t, saved.UserID, loaded.UserID)
	assert.Equal(t, saved.Token, loaded.Token)
	assert.Equal(t, saved.Nickname, loaded.Nickname)
	assert.True(t, loaded.IsAdmin)
	assert.True(t, loaded.Complete())
}

func TestSaveOverwritesPreviousIdentity(t *testing.T) {
	m := openTestStore(t)

	require.NoError(t, m.Save(&types.Identity{RoomID: "AAAAAA", UserID: "u1", Token: "t1"}))
	require.NoError(t, m.Save(&types.Identity{RoomID: "BBBBBB", UserID: "u2", Token: "t2"}))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "BBBBBB", loaded.RoomID)
	assert.Equal(t, "u2", loaded.UserID)
}

func TestSaveNilIdentity(t *testing.T) {
	m := openTestStore(t)
	assert.ErrorIs(t, m.Save(nil), ErrNilIdentity)
}

func TestClear(t *testing.T) {
	m := openTestStore(t)

	require.NoError(t, m.Save(&types.Identity{RoomID: "AB12CD", UserID: "u", Token: "t"}))
	require.NoError(t, m.Clear())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing an already empty store is fine.
	require.NoError(t, m.Clear())
}

func TestConsumeCreatingFlag(t *testing.T) {
	m := openTestStore(t)

	require.NoError(t, m.Save(&types.Identity{RoomID: "AB12CD", UserID: "u", Token: "t", IsCreating: true}))

	creating, err := m.ConsumeCreatingFlag()
	require.NoError(t, err)
	assert.True(t, creating, "first read sees the flag")

	creating, err = m.ConsumeCreatingFlag()
	require.NoError(t, err)
	assert.False(t, creating, "flag is consumed on read")

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.IsCreating)
}

func TestConsumeCreatingFlagEmptyStore(t *testing.T) {
	m := openTestStore(t)

	creating, err := m.ConsumeCreatingFlag()
	require.NoError(t, err)
	assert.False(t, creating)
}

func TestIdentitySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Save(&types.Identity{RoomID: "AB12CD", UserID: "u", Token: "t", Nickname: "bob"}))
	require.NoError(t, m.Close())

	m, err = Open(path)
	require.NoError(t, err)
	defer m.Close()

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "bob", loaded.Nickname)
}
