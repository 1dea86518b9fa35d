// Package usecase implements the credential manager: the orchestration layer
// that ties envelope encryption, persistence, audit logging, and OAuth refresh
// together. All operations that touch plaintext keep it in memory only for the
// duration of the call, and every performed operation is recorded in the
// access log within the same transaction.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// DataKeyRepository defines persistence for per-user data-encryption keys.
type DataKeyRepository interface {
	Create(ctx context.Context, key *vaultDomain.DataKey) error
	Get(ctx context.Context, id uuid.UUID) (*vaultDomain.DataKey, error)
	GetActiveByUser(ctx context.Context, userID string) (*vaultDomain.DataKey, error)
	// GetActiveByUserForUpdate additionally locks the key row, serializing
	// concurrent writes for the same user until the transaction ends.
	GetActiveByUserForUpdate(ctx context.Context, userID string) (*vaultDomain.DataKey, error)
	MarkRotated(ctx context.Context, id uuid.UUID, rotatedAt time.Time) error
}

// CredentialRepository defines persistence for encrypted credentials.
type CredentialRepository interface {
	// Upsert stores the credential, replacing any existing row for the same
	// (user, platform, platform_domain) triple in place. Reports whether a new
	// row was created.
	Upsert(ctx context.Context, credential *vaultDomain.Credential) (bool, error)
	GetActive(ctx context.Context, userID, platform, platformDomain string) (*vaultDomain.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]*vaultDomain.Credential, error)
	ListByDataKey(ctx context.Context, dataKeyID uuid.UUID) ([]*vaultDomain.Credential, error)
	UpdateEncrypted(ctx context.Context, credential *vaultDomain.Credential) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error
	// Deactivate clears is_active on the row, hiding it from GetActive while
	// keeping it for audit history. Returns ErrNotFound if the row is already
	// inactive or missing.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccessLogRepository defines persistence for the append-only access log.
type AccessLogRepository interface {
	Create(ctx context.Context, entry *vaultDomain.AccessLogEntry) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*vaultDomain.AccessLogEntry, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PlatformRepository defines persistence for static platform configuration.
type PlatformRepository interface {
	Upsert(ctx context.Context, platform *vaultDomain.Platform) error
	GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error)
	List(ctx context.Context) ([]*vaultDomain.Platform, error)
}

// RefreshedToken is the result of a successful OAuth refresh exchange.
type RefreshedToken struct {
	AccessToken string
	// RefreshToken is the rotated refresh token, or empty when the provider
	// kept the old one valid.
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
}

// TokenRefresher exchanges a refresh token for a fresh access token at the
// platform's token endpoint. Implemented by the oauth package; declared here
// so the credential manager does not depend on the OAuth transport.
type TokenRefresher interface {
	Refresh(ctx context.Context, platform *vaultDomain.Platform, refreshToken string, scopes []string) (*RefreshedToken, error)
}

// Access identifies who is performing a vault operation and why. Both fields
// are recorded verbatim in the access log.
type Access struct {
	Principal string
	Reason    string
}

// StoreInput carries the plaintext credential to be stored. Fields and
// RefreshToken are secret; callers must not retain them after the call.
type StoreInput struct {
	UserID   string
	Platform string
	// PlatformDomain distinguishes tenants of the same platform (e.g., two
	// school districts on Canvas). Empty means the platform's default domain.
	PlatformDomain string
	Type           vaultDomain.CredentialType
	Fields         vaultDomain.Fields
	// RefreshToken is stored encrypted separately from Fields and is never
	// returned by Get; only the refresh routine reads it back.
	RefreshToken string
	Scopes       []string
	ExpiresAt    *time.Time
}

// AccessLogPage is one page of a user's access history.
type AccessLogPage struct {
	Entries []*vaultDomain.AccessLogEntry
	Total   int
}

// CredentialManager is the single entry point for credential operations.
// Every method that reads or writes a credential also writes an access log
// entry; a successful operation whose audit write fails is rolled back.
type CredentialManager interface {
	// Store encrypts and persists a credential, creating the user's data key
	// on first use. A second store for the same (user, platform, domain)
	// triple replaces the previous credential atomically.
	Store(ctx context.Context, input *StoreInput, access Access) (*vaultDomain.Summary, error)

	// Get decrypts and returns a credential. Expired OAuth credentials are
	// refreshed transparently when a refresh token is stored; if the refresh
	// fails the call returns vaultDomain.ErrCredentialExpired.
	Get(ctx context.Context, userID, platform, platformDomain string, access Access) (*vaultDomain.DecryptedCredential, error)

	// Delete permanently removes a credential.
	Delete(ctx context.Context, userID, platform, platformDomain string, access Access) error

	// Deactivate retires a credential without deleting the row. The
	// credential disappears from reads; storing again over the same slot
	// reactivates it.
	Deactivate(ctx context.Context, userID, platform, platformDomain string, access Access) error

	// List returns metadata for all of the user's credentials without
	// decrypting anything.
	List(ctx context.Context, userID string, access Access) ([]*vaultDomain.Summary, error)

	// RotateDataKey mints a new data key for the user and re-encrypts every
	// credential under it in one transaction, returning the number of
	// re-encrypted credentials. The old key is marked rotated, never deleted.
	RotateDataKey(ctx context.Context, userID string, access Access) (int, error)
}

// AccessLogUseCase exposes the read and retention sides of the access log.
type AccessLogUseCase interface {
	ListByUser(ctx context.Context, userID string, offset, limit int) (*AccessLogPage, error)
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// PlatformUseCase exposes read access to the platform catalog plus the
// idempotent seeding used by the CLI.
type PlatformUseCase interface {
	GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error)
	List(ctx context.Context) ([]*vaultDomain.Platform, error)
	Seed(ctx context.Context, platforms []*vaultDomain.Platform) error
}
