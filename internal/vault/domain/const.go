package domain

import "time"

// CredentialType classifies the secret stored for a platform integration.
type CredentialType string

const (
	// TypeAPIToken is a static API token (e.g., a Canvas access token).
	TypeAPIToken CredentialType = "api_token"
	// TypeOAuth is an OAuth grant with access token, optional refresh token, and scopes.
	TypeOAuth CredentialType = "oauth"
	// TypeSessionCookie is a captured session artifact for platforms without an API.
	TypeSessionCookie CredentialType = "session_cookie"
)

// Valid reports whether the credential type is one of the supported kinds.
func (t CredentialType) Valid() bool {
	switch t {
	case TypeAPIToken, TypeOAuth, TypeSessionCookie:
		return true
	}
	return false
}

// KeyStatus is the lifecycle state of a per-user data-encryption key.
type KeyStatus string

const (
	// KeyStatusActive marks the single key currently used to encrypt the user's
	// credentials. Exactly one key per user holds this status.
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRotated marks a superseded key. Kept forever for forensic needs.
	KeyStatusRotated KeyStatus = "rotated"
	// KeyStatusRevoked marks a key that must never be used again.
	KeyStatusRevoked KeyStatus = "revoked"
)

// Operation identifies a credential access for audit logging.
type Operation string

const (
	OpCreate  Operation = "create"
	OpRead    Operation = "read"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpRefresh Operation = "refresh"
	OpRotate  Operation = "rotate"
	OpList    Operation = "list"
)

// CredentialStatus is the derived expiry state reported by listings.
type CredentialStatus string

const (
	StatusActive       CredentialStatus = "active"
	StatusExpiringSoon CredentialStatus = "expiring_soon"
	StatusExpired      CredentialStatus = "expired"
	StatusNeverExpires CredentialStatus = "never_expires"
)

// DefaultExpiryWindow is the lead time before expiry during which a credential
// is reported as expiring_soon and refresh is attempted proactively.
const DefaultExpiryWindow = 7 * 24 * time.Hour
