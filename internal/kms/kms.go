// Package kms provides the client for the external key-management service that
// wraps and unwraps per-user data-encryption keys (envelope encryption).
//
// The KMS holds a non-exportable master key (KEK) and never sees plaintext
// credentials: only 32-byte data keys cross this boundary, and only the wrapped
// form is ever persisted. The production client is built on gocloud.dev/secrets
// so the same code runs against AWS KMS, GCP KMS, Azure Key Vault, HashiCorp
// Vault, or a local key for development.
package kms

import (
	"context"

	apperrors "github.com/zeroapp/credvault/internal/errors"
)

// keyPurpose is the fixed purpose string bound into every wrapped key's
// encryption context. A wrapped key cannot be unwrapped under a different
// purpose or user.
const keyPurpose = "credential-vault-dek"

// KMS client error definitions.
var (
	// ErrKeyServiceUnavailable indicates a transient network or service failure
	// talking to the external KMS. Retryable with backoff.
	ErrKeyServiceUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "key service unavailable")

	// ErrKeyServicePermissionDenied indicates the KMS denied use of the master
	// key. Fatal: the operation must not be retried.
	ErrKeyServicePermissionDenied = apperrors.Wrap(apperrors.ErrPermissionDenied, "key service denied key use")

	// ErrKeyContextMismatch indicates a wrapped key was presented under a
	// different user or purpose than it was bound to. This is a security event.
	ErrKeyContextMismatch = apperrors.Wrap(apperrors.ErrPermissionDenied, "key encryption context mismatch")
)

// DataKeyMaterial is the result of minting a fresh data-encryption key.
//
// Plaintext exists only transiently in memory; the caller must zero it with
// cryptoDomain.Zero immediately after use. Only Wrapped and KMSKeyID are ever
// persisted.
type DataKeyMaterial struct {
	// Plaintext is the 256-bit data key in cleartext.
	Plaintext []byte
	// Wrapped is the data key encrypted under the KMS master key, bound to the
	// user id and purpose.
	Wrapped []byte
	// KMSKeyID identifies the master key that wrapped this data key.
	KMSKeyID string
}

// Client is the interface to the external key-management service.
//
// Implementations hold no mutable state beyond their connection to the KMS.
// One production implementation (KeeperClient) and one in-memory test
// implementation (MemoryClient) exist so crypto correctness can be tested
// without network access.
type Client interface {
	// GenerateDataKey requests a fresh 256-bit data key bound to the user's
	// encryption context, returning both plaintext and wrapped forms.
	GenerateDataKey(ctx context.Context, userID string) (DataKeyMaterial, error)

	// UnwrapDataKey decrypts a previously wrapped data key under the same
	// user-bound encryption context. The returned plaintext must be zeroed by
	// the caller after use.
	UnwrapDataKey(ctx context.Context, wrapped []byte, userID string) ([]byte, error)
}
