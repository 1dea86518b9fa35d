package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
)

// Credential is one encrypted secret for a (user, platform, platform-domain)
// triple. The triple is unique; a second store for the same triple updates the
// row in place, preserving CreatedAt.
type Credential struct {
	ID             uuid.UUID
	UserID         string
	Platform       string
	PlatformDomain string
	Type           CredentialType

	// Ciphertext, IV, and AuthTag hold the encrypted credential fields.
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	Algorithm  cryptoDomain.Algorithm

	// RefreshCiphertext/RefreshIV/RefreshAuthTag hold the OAuth refresh token,
	// encrypted under the same data key but with its own IV and tag. Nil when
	// no refresh token is stored.
	RefreshCiphertext []byte
	RefreshIV         []byte
	RefreshAuthTag    []byte

	Scopes    []string
	ExpiresAt *time.Time
	IsActive  bool
	DataKeyID uuid.UUID

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt *time.Time
}

// HasRefreshToken reports whether a separately encrypted refresh token is stored.
func (c *Credential) HasRefreshToken() bool {
	return len(c.RefreshCiphertext) > 0
}

// Expired reports whether the credential's expiry timestamp has passed.
// Credentials without an expiry never expire.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Status derives the expiry state used by listings and the refresh state machine:
// never_expires, expired, expiring_soon (within window), or active.
func (c *Credential) Status(now time.Time, window time.Duration) CredentialStatus {
	switch {
	case c.ExpiresAt == nil:
		return StatusNeverExpires
	case !c.ExpiresAt.After(now):
		return StatusExpired
	case !c.ExpiresAt.After(now.Add(window)):
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// Payload returns the main encrypted payload in engine form.
func (c *Credential) Payload() cryptoDomain.EncryptedPayload {
	return cryptoDomain.EncryptedPayload{
		Ciphertext: c.Ciphertext,
		IV:         c.IV,
		AuthTag:    c.AuthTag,
		Algorithm:  c.Algorithm,
	}
}

// RefreshPayload returns the refresh-token payload in engine form.
func (c *Credential) RefreshPayload() cryptoDomain.EncryptedPayload {
	return cryptoDomain.EncryptedPayload{
		Ciphertext: c.RefreshCiphertext,
		IV:         c.RefreshIV,
		AuthTag:    c.RefreshAuthTag,
		Algorithm:  c.Algorithm,
	}
}

// Fields are the plaintext credential fields exchanged with callers
// (e.g., {"api_token": "..."} or {"access_token": "...", "token_type": "Bearer"}).
// Values are held in memory only for the duration of a single call.
type Fields map[string]string

// DecryptedCredential is the result of a successful credential read: plaintext
// fields plus non-secret metadata. The refresh token is deliberately absent;
// it is never returned to any caller other than the refresh routine.
type DecryptedCredential struct {
	ID             uuid.UUID
	Platform       string
	PlatformDomain string
	Type           CredentialType
	Fields         Fields
	Scopes         []string
	ExpiresAt      *time.Time
}

// Summary is the metadata-only view of a credential returned by listings;
// no decryption is performed to produce it.
type Summary struct {
	ID             uuid.UUID
	Platform       string
	PlatformDomain string
	Type           CredentialType
	Status         CredentialStatus
	ExpiresAt      *time.Time
	LastUsedAt     *time.Time
	CreatedAt      time.Time
}
