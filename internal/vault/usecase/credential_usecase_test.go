package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	cryptoService "github.com/zeroapp/credvault/internal/crypto/service"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	"github.com/zeroapp/credvault/internal/kms"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// The tests below exercise the credential manager against in-memory fakes for
// persistence and a real crypto engine plus in-memory KMS, so every stored
// byte goes through genuine envelope encryption.

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// snapshotTxManager restores repository state when fn fails, mimicking a real
// transaction rollback over the in-memory fakes.
type snapshotTxManager struct {
	dataKeys    *fakeDataKeyRepo
	credentials *fakeCredentialRepo
}

func (s snapshotTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	keys := make(map[uuid.UUID]*vaultDomain.DataKey, len(s.dataKeys.keys))
	for id, key := range s.dataKeys.keys {
		copied := *key
		keys[id] = &copied
	}
	rows := make(map[credentialTriple]*vaultDomain.Credential, len(s.credentials.rows))
	for triple, row := range s.credentials.rows {
		copied := *row
		rows[triple] = &copied
	}

	if err := fn(ctx); err != nil {
		s.dataKeys.keys = keys
		s.credentials.rows = rows
		return err
	}
	return nil
}

type fakeDataKeyRepo struct {
	keys map[uuid.UUID]*vaultDomain.DataKey
}

func newFakeDataKeyRepo() *fakeDataKeyRepo {
	return &fakeDataKeyRepo{keys: make(map[uuid.UUID]*vaultDomain.DataKey)}
}

func (f *fakeDataKeyRepo) Create(_ context.Context, key *vaultDomain.DataKey) error {
	for _, existing := range f.keys {
		if existing.UserID == key.UserID && existing.Status == vaultDomain.KeyStatusActive && key.Status == vaultDomain.KeyStatusActive {
			return apperrors.ErrConflict
		}
	}
	copied := *key
	f.keys[key.ID] = &copied
	return nil
}

func (f *fakeDataKeyRepo) Get(_ context.Context, id uuid.UUID) (*vaultDomain.DataKey, error) {
	key, ok := f.keys[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (f *fakeDataKeyRepo) GetActiveByUser(_ context.Context, userID string) (*vaultDomain.DataKey, error) {
	for _, key := range f.keys {
		if key.UserID == userID && key.Status == vaultDomain.KeyStatusActive {
			copied := *key
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeDataKeyRepo) GetActiveByUserForUpdate(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	return f.GetActiveByUser(ctx, userID)
}

func (f *fakeDataKeyRepo) MarkRotated(_ context.Context, id uuid.UUID, rotatedAt time.Time) error {
	key, ok := f.keys[id]
	if !ok || key.Status != vaultDomain.KeyStatusActive {
		return apperrors.ErrNotFound
	}
	key.Status = vaultDomain.KeyStatusRotated
	key.RotatedAt = &rotatedAt
	return nil
}

type credentialTriple struct {
	userID, platform, platformDomain string
}

type fakeCredentialRepo struct {
	rows map[credentialTriple]*vaultDomain.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{rows: make(map[credentialTriple]*vaultDomain.Credential)}
}

func tripleOf(c *vaultDomain.Credential) credentialTriple {
	return credentialTriple{c.UserID, c.Platform, c.PlatformDomain}
}

func (f *fakeCredentialRepo) Upsert(_ context.Context, credential *vaultDomain.Credential) (bool, error) {
	key := tripleOf(credential)
	if existing, ok := f.rows[key]; ok {
		credential.ID = existing.ID
		credential.CreatedAt = existing.CreatedAt
		copied := *credential
		f.rows[key] = &copied
		return false, nil
	}
	copied := *credential
	f.rows[key] = &copied
	return true, nil
}

func (f *fakeCredentialRepo) GetActive(_ context.Context, userID, platform, platformDomain string) (*vaultDomain.Credential, error) {
	row, ok := f.rows[credentialTriple{userID, platform, platformDomain}]
	if !ok || !row.IsActive {
		return nil, apperrors.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeCredentialRepo) ListByUser(_ context.Context, userID string) ([]*vaultDomain.Credential, error) {
	var out []*vaultDomain.Credential
	for _, row := range f.rows {
		if row.UserID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) ListByDataKey(_ context.Context, dataKeyID uuid.UUID) ([]*vaultDomain.Credential, error) {
	var out []*vaultDomain.Credential
	for _, row := range f.rows {
		if row.DataKeyID == dataKeyID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) UpdateEncrypted(_ context.Context, credential *vaultDomain.Credential) error {
	key := tripleOf(credential)
	if _, ok := f.rows[key]; !ok {
		return apperrors.ErrNotFound
	}
	copied := *credential
	f.rows[key] = &copied
	return nil
}

func (f *fakeCredentialRepo) TouchLastUsed(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	for _, row := range f.rows {
		if row.ID == id {
			row.LastUsedAt = &usedAt
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeCredentialRepo) Deactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, row := range f.rows {
		if row.ID == id && row.IsActive {
			row.IsActive = false
			row.UpdatedAt = at
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeCredentialRepo) Delete(_ context.Context, id uuid.UUID) error {
	for key, row := range f.rows {
		if row.ID == id {
			delete(f.rows, key)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// tamper flips a ciphertext byte of the stored row, simulating corruption at rest.
func (f *fakeCredentialRepo) tamper(t *testing.T, userID, platform, platformDomain string) {
	t.Helper()
	row, ok := f.rows[credentialTriple{userID, platform, platformDomain}]
	require.True(t, ok)
	row.Ciphertext[0] ^= 0xff
}

type fakeAccessLogRepo struct {
	entries   []*vaultDomain.AccessLogEntry
	createErr error
}

func (f *fakeAccessLogRepo) Create(_ context.Context, entry *vaultDomain.AccessLogEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeAccessLogRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]*vaultDomain.AccessLogEntry, error) {
	var out []*vaultDomain.AccessLogEntry
	for _, entry := range f.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAccessLogRepo) CountByUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, entry := range f.entries {
		if entry.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAccessLogRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*vaultDomain.AccessLogEntry
	var deleted int64
	for _, entry := range f.entries {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	f.entries = kept
	return deleted, nil
}

// ops summarizes recorded operations for assertions.
func (f *fakeAccessLogRepo) ops() []vaultDomain.Operation {
	out := make([]vaultDomain.Operation, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Operation)
	}
	return out
}

func (f *fakeAccessLogRepo) last() *vaultDomain.AccessLogEntry {
	if len(f.entries) == 0 {
		return nil
	}
	return f.entries[len(f.entries)-1]
}

type fakePlatformRepo struct {
	platforms map[string]*vaultDomain.Platform
}

func newFakePlatformRepo(platforms ...*vaultDomain.Platform) *fakePlatformRepo {
	repo := &fakePlatformRepo{platforms: make(map[string]*vaultDomain.Platform)}
	for _, p := range platforms {
		repo.platforms[p.Name] = p
	}
	return repo
}

func (f *fakePlatformRepo) Upsert(_ context.Context, platform *vaultDomain.Platform) error {
	f.platforms[platform.Name] = platform
	return nil
}

func (f *fakePlatformRepo) GetByName(_ context.Context, name string) (*vaultDomain.Platform, error) {
	platform, ok := f.platforms[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return platform, nil
}

func (f *fakePlatformRepo) List(_ context.Context) ([]*vaultDomain.Platform, error) {
	var out []*vaultDomain.Platform
	for _, p := range f.platforms {
		out = append(out, p)
	}
	return out, nil
}

type refresherFunc func(ctx context.Context, platform *vaultDomain.Platform, refreshToken string, scopes []string) (*RefreshedToken, error)

func (fn refresherFunc) Refresh(ctx context.Context, platform *vaultDomain.Platform, refreshToken string, scopes []string) (*RefreshedToken, error) {
	return fn(ctx, platform, refreshToken, scopes)
}

type managerFixture struct {
	manager     CredentialManager
	dataKeys    *fakeDataKeyRepo
	credentials *fakeCredentialRepo
	accessLog   *fakeAccessLogRepo
	platforms   *fakePlatformRepo
	kmsClient   *kms.MemoryClient
	refresher   refresherFunc
}

func oauthPlatform() *vaultDomain.Platform {
	return &vaultDomain.Platform{
		ID:               uuid.Must(uuid.NewV7()),
		Name:             "canvas",
		DisplayName:      "Canvas LMS",
		AuthType:         vaultDomain.TypeOAuth,
		BaseURL:          "https://canvas.example.com/api/v1",
		DefaultDomain:    "canvas.example.com",
		AuthorizationURL: "https://canvas.example.com/login/oauth2/auth",
		TokenURL:         "https://canvas.example.com/login/oauth2/token",
		CreatedAt:        time.Now().UTC(),
	}
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	kmsClient, err := kms.NewMemoryClient()
	require.NoError(t, err)

	fixture := &managerFixture{
		dataKeys:    newFakeDataKeyRepo(),
		credentials: newFakeCredentialRepo(),
		accessLog:   &fakeAccessLogRepo{},
		platforms:   newFakePlatformRepo(oauthPlatform()),
		kmsClient:   kmsClient,
	}
	fixture.refresher = func(context.Context, *vaultDomain.Platform, string, []string) (*RefreshedToken, error) {
		return nil, vaultDomain.ErrRefreshFailed
	}

	engine := cryptoService.NewEngine(cryptoService.NewCipherFactory())
	fixture.manager = NewCredentialUseCase(
		fakeTxManager{},
		fixture.dataKeys,
		fixture.credentials,
		fixture.accessLog,
		fixture.platforms,
		kmsClient,
		engine,
		refresherFunc(func(ctx context.Context, p *vaultDomain.Platform, token string, scopes []string) (*RefreshedToken, error) {
			return fixture.refresher(ctx, p, token, scopes)
		}),
		cryptoDomain.AESGCM,
		0,
	)
	return fixture
}

var testAccess = Access{Principal: "extraction-worker", Reason: "scheduled sync"}

func storeInput() *StoreInput {
	return &StoreInput{
		UserID:         "user-1",
		Platform:       "canvas",
		PlatformDomain: "school.instructure.com",
		Type:           vaultDomain.TypeAPIToken,
		Fields:         vaultDomain.Fields{"api_token": "tok-123"},
	}
}

func TestCredentialUseCase_StoreAndGet(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	summary, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)
	assert.Equal(t, "canvas", summary.Platform)
	assert.Equal(t, vaultDomain.StatusNeverExpires, summary.Status)

	// First store mints the user's data key.
	assert.Equal(t, 1, fixture.kmsClient.GenerateCalls)
	_, err = fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)

	// The stored row holds no plaintext.
	row, err := fixture.credentials.GetActive(ctx, "user-1", "canvas", "school.instructure.com")
	require.NoError(t, err)
	assert.NotContains(t, string(row.Ciphertext), "tok-123")
	assert.Len(t, row.IV, cryptoDomain.NonceSize)
	assert.Len(t, row.AuthTag, cryptoDomain.TagSize)

	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, vaultDomain.Fields{"api_token": "tok-123"}, credential.Fields)

	assert.Equal(t, []vaultDomain.Operation{vaultDomain.OpCreate, vaultDomain.OpRead}, fixture.accessLog.ops())
	assert.Equal(t, "extraction-worker", fixture.accessLog.last().Principal)
	assert.True(t, fixture.accessLog.last().Success)
}

func TestCredentialUseCase_StoreSameTripleUpdates(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	updated := storeInput()
	updated.Fields = vaultDomain.Fields{"api_token": "tok-456"}
	_, err = fixture.manager.Store(ctx, updated, testAccess)
	require.NoError(t, err)

	// Still one credential, one data key; second store audited as update.
	assert.Len(t, fixture.credentials.rows, 1)
	assert.Equal(t, 1, fixture.kmsClient.GenerateCalls)
	assert.Equal(t, []vaultDomain.Operation{vaultDomain.OpCreate, vaultDomain.OpUpdate}, fixture.accessLog.ops())

	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "tok-456", credential.Fields["api_token"])
}

func TestCredentialUseCase_StoreDefaultsPlatformDomain(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.PlatformDomain = ""
	summary, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)
	assert.Equal(t, "canvas.example.com", summary.PlatformDomain)

	// Unknown platform with no explicit domain cannot be stored.
	input = storeInput()
	input.Platform = "unknown"
	input.PlatformDomain = ""
	_, err = fixture.manager.Store(ctx, input, testAccess)
	assert.ErrorIs(t, err, vaultDomain.ErrPlatformNotConfigured)
}

func TestCredentialUseCase_DefaultDomainRoundTrip(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.PlatformDomain = ""
	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	// Reads and deletes that omit the domain resolve to the same default the
	// store did, so the credential is addressable the way it was written.
	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "canvas.example.com", credential.PlatformDomain)
	assert.Equal(t, "tok-123", credential.Fields["api_token"])

	require.NoError(t, fixture.manager.Delete(ctx, "user-1", "canvas", "", testAccess))
	assert.Empty(t, fixture.credentials.rows)

	// An unknown platform cannot be resolved on the read side either.
	_, err = fixture.manager.Get(ctx, "user-1", "unknown", "", testAccess)
	assert.ErrorIs(t, err, vaultDomain.ErrPlatformNotConfigured)
}

func TestCredentialUseCase_StoreValidation(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*StoreInput)
	}{
		{"missing user id", func(i *StoreInput) { i.UserID = "" }},
		{"missing platform", func(i *StoreInput) { i.Platform = "" }},
		{"unknown type", func(i *StoreInput) { i.Type = "password" }},
		{"empty fields", func(i *StoreInput) { i.Fields = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := storeInput()
			tt.mutate(input)
			_, err := fixture.manager.Store(ctx, input, testAccess)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	// Nothing was stored or audited.
	assert.Empty(t, fixture.credentials.rows)
	assert.Empty(t, fixture.accessLog.entries)
}

func TestCredentialUseCase_StoreFailsClosedOnAuditError(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	fixture.accessLog.createErr = apperrors.New("audit store down")

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write access log")
}

func TestCredentialUseCase_StoreKeyServiceUnavailable(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	fixture.kmsClient.GenerateErr = kms.ErrKeyServiceUnavailable

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Empty(t, fixture.credentials.rows)
}

func TestCredentialUseCase_GetNotFoundIsNotAudited(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Get(ctx, "user-1", "canvas", "nope.example.com", testAccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, fixture.accessLog.entries)
}

func TestCredentialUseCase_GetDetectsTampering(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	fixture.credentials.tamper(t, "user-1", "canvas", "school.instructure.com")

	_, err = fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityViolation)

	// The failed read is on the record.
	last := fixture.accessLog.last()
	require.NotNil(t, last)
	assert.Equal(t, vaultDomain.OpRead, last.Operation)
	assert.False(t, last.Success)
	assert.NotEmpty(t, last.Error)
}

func TestCredentialUseCase_GetNeverReturnsRefreshToken(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.Type = vaultDomain.TypeOAuth
	input.Fields = vaultDomain.Fields{"access_token": "at-1", "token_type": "Bearer"}
	input.RefreshToken = "rt-secret"
	expires := time.Now().UTC().Add(time.Hour)
	input.ExpiresAt = &expires

	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	for _, value := range credential.Fields {
		assert.NotEqual(t, "rt-secret", value)
	}
}

func TestCredentialUseCase_GetRefreshesExpiredOAuth(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.Type = vaultDomain.TypeOAuth
	input.Fields = vaultDomain.Fields{"access_token": "at-old", "token_type": "Bearer"}
	input.RefreshToken = "rt-old"
	expired := time.Now().UTC().Add(-time.Minute)
	input.ExpiresAt = &expired

	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	newExpiry := time.Now().UTC().Add(time.Hour)
	var gotRefreshToken string
	fixture.refresher = func(_ context.Context, platform *vaultDomain.Platform, refreshToken string, _ []string) (*RefreshedToken, error) {
		gotRefreshToken = refreshToken
		assert.Equal(t, "canvas", platform.Name)
		return &RefreshedToken{
			AccessToken:  "at-new",
			RefreshToken: "rt-new",
			TokenType:    "Bearer",
			ExpiresAt:    &newExpiry,
		}, nil
	}

	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)

	// The stored refresh token was decrypted for the exchange, and the
	// returned fields carry the fresh access token.
	assert.Equal(t, "rt-old", gotRefreshToken)
	assert.Equal(t, "at-new", credential.Fields["access_token"])
	require.NotNil(t, credential.ExpiresAt)
	assert.WithinDuration(t, newExpiry, *credential.ExpiresAt, time.Second)

	// Refresh and read both audited.
	assert.Equal(t, []vaultDomain.Operation{vaultDomain.OpCreate, vaultDomain.OpRefresh, vaultDomain.OpRead}, fixture.accessLog.ops())

	// A subsequent read uses the stored fresh token without another refresh.
	fixture.refresher = func(context.Context, *vaultDomain.Platform, string, []string) (*RefreshedToken, error) {
		t.Fatal("refresh should not run for a valid credential")
		return nil, nil
	}
	credential, err = fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "at-new", credential.Fields["access_token"])
}

func TestCredentialUseCase_RefreshSurvivesAlgorithmChange(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.Type = vaultDomain.TypeOAuth
	input.Fields = vaultDomain.Fields{"access_token": "at-old"}
	input.RefreshToken = "rt-stable"
	expired := time.Now().UTC().Add(-time.Minute)
	input.ExpiresAt = &expired

	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	// A redeployment switches the configured algorithm; stored rows were
	// written under AES-GCM.
	engine := cryptoService.NewEngine(cryptoService.NewCipherFactory())
	chachaManager := NewCredentialUseCase(
		fakeTxManager{},
		fixture.dataKeys,
		fixture.credentials,
		fixture.accessLog,
		fixture.platforms,
		fixture.kmsClient,
		engine,
		refresherFunc(func(ctx context.Context, p *vaultDomain.Platform, token string, scopes []string) (*RefreshedToken, error) {
			return fixture.refresher(ctx, p, token, scopes)
		}),
		cryptoDomain.ChaCha20,
		0,
	)

	// The provider keeps the refresh token, so every exchange presents the
	// same one.
	var exchanged []string
	stillExpired := time.Now().UTC().Add(-time.Minute)
	fixture.refresher = func(_ context.Context, _ *vaultDomain.Platform, refreshToken string, _ []string) (*RefreshedToken, error) {
		exchanged = append(exchanged, refreshToken)
		return &RefreshedToken{AccessToken: "at-new", ExpiresAt: &stillExpired}, nil
	}

	// First read refreshes and rewrites both blobs under the new algorithm.
	_, err = chachaManager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)

	row, err := fixture.credentials.GetActive(ctx, "user-1", "canvas", "school.instructure.com")
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.ChaCha20, row.Algorithm)

	// The still-expired credential refreshes again; the refresh token written
	// by the previous refresh must decrypt under the row's recorded algorithm.
	_, err = chachaManager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, []string{"rt-stable", "rt-stable"}, exchanged)
}

func TestCredentialUseCase_GetExpiredRefreshFails(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.Type = vaultDomain.TypeOAuth
	input.Fields = vaultDomain.Fields{"access_token": "at-old"}
	input.RefreshToken = "rt-old"
	expired := time.Now().UTC().Add(-time.Minute)
	input.ExpiresAt = &expired

	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	_, err = fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, vaultDomain.ErrCredentialExpired)

	last := fixture.accessLog.last()
	require.NotNil(t, last)
	assert.Equal(t, vaultDomain.OpRead, last.Operation)
	assert.False(t, last.Success)
	assert.Equal(t, "expired", last.Reason)
}

func TestCredentialUseCase_GetExpiredWithoutRefreshToken(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	expired := time.Now().UTC().Add(-time.Minute)
	input.ExpiresAt = &expired

	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	_, err = fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, vaultDomain.ErrCredentialExpired)

	// The failed read is audited as an expiry, not with the caller's reason.
	last := fixture.accessLog.last()
	require.NotNil(t, last)
	assert.False(t, last.Success)
	assert.Equal(t, "expired", last.Reason)
}

func TestCredentialUseCase_Delete(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	require.NoError(t, fixture.manager.Delete(ctx, "user-1", "canvas", "school.instructure.com", testAccess))
	assert.Empty(t, fixture.credentials.rows)
	assert.Equal(t, []vaultDomain.Operation{vaultDomain.OpCreate, vaultDomain.OpDelete}, fixture.accessLog.ops())

	// Deleting a missing credential is a plain not-found, no audit entry.
	err = fixture.manager.Delete(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Len(t, fixture.accessLog.entries, 2)
}

func TestCredentialUseCase_List(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	first := storeInput()
	_, err := fixture.manager.Store(ctx, first, testAccess)
	require.NoError(t, err)

	second := storeInput()
	second.Platform = "strava"
	second.PlatformDomain = "strava.com"
	soon := time.Now().UTC().Add(time.Hour)
	second.ExpiresAt = &soon
	_, err = fixture.manager.Store(ctx, second, testAccess)
	require.NoError(t, err)

	summaries, err := fixture.manager.List(ctx, "user-1", testAccess)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	statuses := map[string]vaultDomain.CredentialStatus{}
	for _, s := range summaries {
		statuses[s.Platform] = s.Status
	}
	assert.Equal(t, vaultDomain.StatusNeverExpires, statuses["canvas"])
	assert.Equal(t, vaultDomain.StatusExpiringSoon, statuses["strava"])

	// The whole listing is one audit entry with no credential id.
	ops := fixture.accessLog.ops()
	assert.Equal(t, vaultDomain.OpList, ops[len(ops)-1])
	assert.Nil(t, fixture.accessLog.last().CredentialID)

	// Listing for a user with no credentials succeeds with an empty result.
	summaries, err = fixture.manager.List(ctx, "user-2", testAccess)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestCredentialUseCase_RotateDataKey(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	input := storeInput()
	input.Type = vaultDomain.TypeOAuth
	input.Fields = vaultDomain.Fields{"access_token": "at-1"}
	input.RefreshToken = "rt-1"
	_, err := fixture.manager.Store(ctx, input, testAccess)
	require.NoError(t, err)

	second := storeInput()
	second.Platform = "strava"
	second.PlatformDomain = "strava.com"
	_, err = fixture.manager.Store(ctx, second, testAccess)
	require.NoError(t, err)

	oldKey, err := fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)

	rotated, err := fixture.manager.RotateDataKey(ctx, "user-1", Access{Principal: "ops", Reason: "quarterly rotation"})
	require.NoError(t, err)
	assert.Equal(t, 2, rotated)

	// Old key superseded, new key active, credentials rebound.
	superseded, err := fixture.dataKeys.Get(ctx, oldKey.ID)
	require.NoError(t, err)
	assert.Equal(t, vaultDomain.KeyStatusRotated, superseded.Status)
	assert.NotNil(t, superseded.RotatedAt)

	newKey, err := fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, oldKey.ID, newKey.ID)

	for _, row := range fixture.credentials.rows {
		assert.Equal(t, newKey.ID, row.DataKeyID)
	}

	// Everything still decrypts after rotation.
	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "at-1", credential.Fields["access_token"])

	ops := fixture.accessLog.ops()
	assert.Contains(t, ops, vaultDomain.OpRotate)
}

func TestCredentialUseCase_RotateDataKeyWithoutKey(t *testing.T) {
	fixture := newManagerFixture(t)

	_, err := fixture.manager.RotateDataKey(context.Background(), "user-1", testAccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCredentialUseCase_RotateDataKeyIsAllOrNothing(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	engine := cryptoService.NewEngine(cryptoService.NewCipherFactory())
	manager := NewCredentialUseCase(
		snapshotTxManager{dataKeys: fixture.dataKeys, credentials: fixture.credentials},
		fixture.dataKeys,
		fixture.credentials,
		fixture.accessLog,
		fixture.platforms,
		fixture.kmsClient,
		engine,
		refresherFunc(func(context.Context, *vaultDomain.Platform, string, []string) (*RefreshedToken, error) {
			return nil, vaultDomain.ErrRefreshFailed
		}),
		cryptoDomain.AESGCM,
		0,
	)

	_, err := manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	oldKey, err := fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)

	// The audit insert fails after the credentials were already re-encrypted;
	// the whole rotation must roll back.
	fixture.accessLog.createErr = apperrors.New("access log store down")
	_, err = manager.RotateDataKey(ctx, "user-1", testAccess)
	require.Error(t, err)
	fixture.accessLog.createErr = nil

	active, err := fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, oldKey.ID, active.ID)

	credential, err := manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", credential.Fields["api_token"])
}

// contendedDataKeyRepo misses the first locked lookup, replaying the window in
// which another transaction inserts the user's first data key.
type contendedDataKeyRepo struct {
	*fakeDataKeyRepo
	missFirstLookup bool
}

func (c *contendedDataKeyRepo) GetActiveByUserForUpdate(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	if c.missFirstLookup {
		c.missFirstLookup = false
		return nil, apperrors.ErrNotFound
	}
	return c.fakeDataKeyRepo.GetActiveByUserForUpdate(ctx, userID)
}

func TestCredentialUseCase_FirstStoreLosesKeyRace(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	// Another store for the same brand-new user already minted the key.
	material, err := fixture.kmsClient.GenerateDataKey(ctx, "user-1")
	require.NoError(t, err)
	cryptoDomain.Zero(material.Plaintext)
	winner := &vaultDomain.DataKey{
		ID:         uuid.Must(uuid.NewV7()),
		UserID:     "user-1",
		KMSKeyID:   material.KMSKeyID,
		WrappedKey: material.Wrapped,
		Algorithm:  cryptoDomain.AESGCM,
		Status:     vaultDomain.KeyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, fixture.dataKeys.Create(ctx, winner))

	contended := &contendedDataKeyRepo{fakeDataKeyRepo: fixture.dataKeys, missFirstLookup: true}
	engine := cryptoService.NewEngine(cryptoService.NewCipherFactory())
	manager := NewCredentialUseCase(
		fakeTxManager{},
		contended,
		fixture.credentials,
		fixture.accessLog,
		fixture.platforms,
		fixture.kmsClient,
		engine,
		refresherFunc(func(context.Context, *vaultDomain.Platform, string, []string) (*RefreshedToken, error) {
			return nil, vaultDomain.ErrRefreshFailed
		}),
		cryptoDomain.AESGCM,
		0,
	)

	// The losing store hits the conflict on insert and falls back to the
	// winner's key instead of surfacing an error.
	_, err = manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	assert.Len(t, fixture.dataKeys.keys, 1)
	row, err := fixture.credentials.GetActive(ctx, "user-1", "canvas", "school.instructure.com")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, row.DataKeyID)

	credential, err := manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", credential.Fields["api_token"])
}

func TestCredentialUseCase_Deactivate(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	require.NoError(t, fixture.manager.Deactivate(ctx, "user-1", "canvas", "school.instructure.com", testAccess))

	// The row survives for audit history but no longer answers reads.
	assert.Len(t, fixture.credentials.rows, 1)
	_, err = fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, []vaultDomain.Operation{vaultDomain.OpCreate, vaultDomain.OpDelete}, fixture.accessLog.ops())

	// Deactivating again is a plain not-found with no audit entry.
	err = fixture.manager.Deactivate(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Len(t, fixture.accessLog.entries, 2)

	// Storing over the same slot reactivates it.
	_, err = fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)
	credential, err := fixture.manager.Get(ctx, "user-1", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", credential.Fields["api_token"])
}

func TestCredentialUseCase_UsersAreIsolated(t *testing.T) {
	fixture := newManagerFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Store(ctx, storeInput(), testAccess)
	require.NoError(t, err)

	other := storeInput()
	other.UserID = "user-2"
	other.Fields = vaultDomain.Fields{"api_token": "tok-other"}
	_, err = fixture.manager.Store(ctx, other, testAccess)
	require.NoError(t, err)

	// Each user got their own data key.
	assert.Equal(t, 2, fixture.kmsClient.GenerateCalls)

	keyOne, err := fixture.dataKeys.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	keyTwo, err := fixture.dataKeys.GetActiveByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.NotEqual(t, keyOne.ID, keyTwo.ID)

	credential, err := fixture.manager.Get(ctx, "user-2", "canvas", "school.instructure.com", testAccess)
	require.NoError(t, err)
	assert.Equal(t, "tok-other", credential.Fields["api_token"])
}
