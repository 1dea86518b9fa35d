package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	"github.com/zeroapp/credvault/internal/testutil"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

func TestMySQLDataKeyRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfNoMySQL(t)
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLDataKeyRepository(db)
	ctx := context.Background()

	key := newTestDataKey(t, "user-1")
	require.NoError(t, repo.Create(ctx, key))

	read, err := repo.Get(ctx, key.ID)
	require.NoError(t, err)

	assert.Equal(t, key.ID, read.ID)
	assert.Equal(t, key.UserID, read.UserID)
	assert.Equal(t, key.WrappedKey, read.WrappedKey)
	assert.Equal(t, cryptoDomain.AESGCM, read.Algorithm)
	assert.Equal(t, vaultDomain.KeyStatusActive, read.Status)
	assert.WithinDuration(t, key.CreatedAt, read.CreatedAt, time.Second)
}

func TestMySQLDataKeyRepository_Get_NotFound(t *testing.T) {
	testutil.SkipIfNoMySQL(t)
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLDataKeyRepository(db)

	_, err := repo.Get(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMySQLDataKeyRepository_SingleActivePerUser(t *testing.T) {
	testutil.SkipIfNoMySQL(t)
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLDataKeyRepository(db)
	ctx := context.Background()

	first := newTestDataKey(t, "user-1")
	require.NoError(t, repo.Create(ctx, first))

	// The generated active_marker column turns a second active key into a
	// unique key violation, reported as a conflict like the Postgres repo.
	second := newTestDataKey(t, "user-1")
	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, repo.MarkRotated(ctx, first.ID, time.Now().UTC()))
	replacement := newTestDataKey(t, "user-1")
	assert.NoError(t, repo.Create(ctx, replacement))

	active, err := repo.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, active.ID)
}
