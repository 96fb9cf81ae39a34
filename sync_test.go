package identity_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/skyexplorer/go-identity"
)

func setupSynchronizer(t *testing.T) (*identity.Synchronizer, *identity.XMLUserStore, *identity.BunUserStore) {
	t.Helper()

	source, err := identity.NewXMLUserStore(filepath.Join(t.TempDir(), "users.xml"))
	require.NoError(t, err)

	target, _ := setupBunStore(t)

	cfg := newTestConfig()
	cfg.userSource = identity.UserSourceFile

	return identity.NewSynchronizer(source, target, cfg), source, target
}

func TestSynchronizer_CreatesMissingMirror(t *testing.T) {
	sync, source, target := setupSynchronizer(t)
	ctx := context.Background()

	_, err := source.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
		Roles:        []string{identity.RoleUser},
	})
	require.NoError(t, err)

	mirror, err := sync.SynchronizeUser(ctx, "amelia")
	require.NoError(t, err)
	require.NotNil(t, mirror)

	persisted, err := target.FindByUsername(ctx, "amelia")
	require.NoError(t, err)
	assert.Equal(t, "amelia@skyexplorer.test", persisted.Email)
	assert.Equal(t, "hash", persisted.PasswordHash)
	assert.Equal(t, []string{identity.RoleUser}, persisted.Roles)
	assert.NotNil(t, persisted.CreatedAt)
	assert.NotNil(t, persisted.UpdatedAt)
}

func TestSynchronizer_RefreshesDriftedMirror(t *testing.T) {
	sync, source, target := setupSynchronizer(t)
	ctx := context.Background()

	_, err := source.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
		Roles:        []string{identity.RoleUser, identity.RoleAdmin},
	})
	require.NoError(t, err)

	stale := time.Now().Add(-24 * time.Hour)
	_, err = target.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "old@skyexplorer.test",
		PasswordHash: "hash",
		Roles:        []string{identity.RoleUser},
		CreatedAt:    &stale,
		UpdatedAt:    &stale,
	})
	require.NoError(t, err)

	mirror, err := sync.SynchronizeUser(ctx, "amelia")
	require.NoError(t, err)

	assert.Equal(t, "amelia@skyexplorer.test", mirror.Email)
	assert.ElementsMatch(t, []string{identity.RoleUser, identity.RoleAdmin}, mirror.Roles)
	assert.True(t, mirror.UpdatedAt.After(stale))
}

func TestSynchronizer_UpToDateMirrorIsUntouched(t *testing.T) {
	sync, source, target := setupSynchronizer(t)
	ctx := context.Background()

	_, err := source.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
		Roles:        []string{identity.RoleUser},
	})
	require.NoError(t, err)

	stale := time.Now().Add(-24 * time.Hour)
	_, err = target.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
		Roles:        []string{identity.RoleUser},
		CreatedAt:    &stale,
		UpdatedAt:    &stale,
	})
	require.NoError(t, err)

	mirror, err := sync.SynchronizeUser(ctx, "amelia")
	require.NoError(t, err)

	// no drift: the timestamp must not move
	assert.WithinDuration(t, stale, *mirror.UpdatedAt, time.Second)
}

func TestSynchronizer_AbsentSourceIsANoOp(t *testing.T) {
	sync, _, target := setupSynchronizer(t)
	ctx := context.Background()

	mirror, err := sync.SynchronizeUser(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, mirror)

	all, err := target.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSynchronizer_DisabledWhenDatabaseIsAuthoritative(t *testing.T) {
	source, err := identity.NewXMLUserStore(filepath.Join(t.TempDir(), "users.xml"))
	require.NoError(t, err)
	target, _ := setupBunStore(t)

	ctx := context.Background()
	_, err = source.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	sync := identity.NewSynchronizer(source, target, newTestConfig())
	assert.False(t, sync.Enabled())

	mirror, err := sync.SynchronizeUser(ctx, "amelia")
	assert.NoError(t, err)
	assert.Nil(t, mirror)

	all, err := target.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSynchronizer_LoginListener(t *testing.T) {
	sync, source, target := setupSynchronizer(t)
	ctx := context.Background()

	_, err := source.Save(ctx, &identity.User{
		Username:     "amelia",
		Email:        "amelia@skyexplorer.test",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	listener := sync.LoginListener()
	listener(ctx, testIdentity{username: "amelia"})

	_, err = target.FindByUsername(ctx, "amelia")
	assert.NoError(t, err)

	// a nil identity never panics
	listener(ctx, nil)
}
