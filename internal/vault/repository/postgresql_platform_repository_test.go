package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zeroapp/credvault/internal/errors"
	"github.com/zeroapp/credvault/internal/testutil"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

func newTestPlatform(name string) *vaultDomain.Platform {
	return &vaultDomain.Platform{
		ID:               uuid.Must(uuid.NewV7()),
		Name:             name,
		DisplayName:      "Canvas LMS",
		AuthType:         vaultDomain.TypeOAuth,
		BaseURL:          "https://canvas.instructure.com/api/v1",
		DefaultDomain:    "canvas.instructure.com",
		AuthorizationURL: "https://canvas.instructure.com/login/oauth2/auth",
		TokenURL:         "https://canvas.instructure.com/login/oauth2/token",
		Scopes:           []string{"url:GET|/api/v1/courses"},
		Capabilities:     []string{"assignments", "grades"},
		CreatedAt:        time.Now().UTC(),
	}
}

func TestPostgreSQLPlatformRepository_UpsertAndGetByName(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPlatformRepository(db)
	ctx := context.Background()

	platform := newTestPlatform("canvas")
	require.NoError(t, repo.Upsert(ctx, platform))

	read, err := repo.GetByName(ctx, "canvas")
	require.NoError(t, err)
	assert.Equal(t, platform.ID, read.ID)
	assert.Equal(t, "Canvas LMS", read.DisplayName)
	assert.Equal(t, vaultDomain.TypeOAuth, read.AuthType)
	assert.Equal(t, platform.Scopes, read.Scopes)
	assert.Equal(t, platform.Capabilities, read.Capabilities)
	assert.True(t, read.SupportsOAuth())
}

func TestPostgreSQLPlatformRepository_UpsertIsIdempotent(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPlatformRepository(db)
	ctx := context.Background()

	platform := newTestPlatform("canvas")
	require.NoError(t, repo.Upsert(ctx, platform))

	// Re-seeding with changed fields updates the existing row.
	updated := newTestPlatform("canvas")
	updated.DisplayName = "Canvas"
	updated.Capabilities = []string{"assignments", "grades", "schedule"}
	require.NoError(t, repo.Upsert(ctx, updated))

	read, err := repo.GetByName(ctx, "canvas")
	require.NoError(t, err)
	assert.Equal(t, "Canvas", read.DisplayName)
	assert.Equal(t, updated.Capabilities, read.Capabilities)

	platforms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, platforms, 1)
}

func TestPostgreSQLPlatformRepository_GetByName_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPlatformRepository(db)

	_, err := repo.GetByName(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgreSQLPlatformRepository_List_Ordered(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPlatformRepository(db)
	ctx := context.Background()

	for _, name := range []string{"strava", "canvas", "mealplan"} {
		platform := newTestPlatform(name)
		require.NoError(t, repo.Upsert(ctx, platform))
	}

	platforms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 3)
	assert.Equal(t, "canvas", platforms[0].Name)
	assert.Equal(t, "mealplan", platforms[1].Name)
	assert.Equal(t, "strava", platforms[2].Name)
}
