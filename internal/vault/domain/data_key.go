// Package domain defines the core domain models for the credential vault:
// per-user data-encryption keys, encrypted credentials, access-log entries,
// and static platform configuration.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
)

// DataKey is a per-user 256-bit data-encryption key in its persisted form.
//
// Only the KMS-wrapped ciphertext, the KMS key identifier, and the status are
// stored. The plaintext key exists only transiently in memory during an
// encrypt/decrypt call and must be zeroed immediately after use. Exactly one
// key per user has status active; superseded keys are marked rotated and never
// deleted.
type DataKey struct {
	ID         uuid.UUID // Unique identifier (UUIDv7)
	UserID     string    // Owning user; scoping key for every query
	KMSKeyID   string    // Identifier of the KMS master key that wrapped this key
	WrappedKey []byte    // The data key encrypted under the KMS master key
	Algorithm  cryptoDomain.Algorithm
	Status     KeyStatus
	CreatedAt  time.Time
	RotatedAt  *time.Time // Set when the key is superseded by a rotation
}
