package domain

import (
	"github.com/zeroapp/credvault/internal/errors"
)

// Vault operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so
// that the HTTP layer can map them without inspecting lower-level detail.
var (
	// ErrEncryptionFailed indicates a credential could not be encrypted or
	// decrypted due to a lower-layer crypto failure.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrStorageFailed indicates the persistence layer rejected or lost a
	// vault write. The operation left no partial state behind.
	ErrStorageFailed = errors.New("storage failed")

	// ErrCredentialExpired indicates the credential's expiry has passed and
	// could not be recovered by the refresh state machine. The end user must
	// re-authorize out of band.
	ErrCredentialExpired = errors.Wrap(errors.ErrInvalidInput, "credential expired")

	// ErrRefreshFailed indicates the OAuth refresh exchange with the external
	// provider failed. The credential stays expired.
	ErrRefreshFailed = errors.New("oauth refresh failed")

	// ErrNoRefreshToken indicates a refresh was requested for a credential
	// that has no stored refresh token.
	ErrNoRefreshToken = errors.Wrap(errors.ErrInvalidInput, "no refresh token stored")

	// ErrPlatformNotConfigured indicates the requested platform has no entry
	// in the static platform configuration table.
	ErrPlatformNotConfigured = errors.Wrap(errors.ErrInvalidInput, "platform not configured")

	// ErrOAuthNotSupported indicates an OAuth flow was initiated for a
	// platform that is not connected via OAuth.
	ErrOAuthNotSupported = errors.Wrap(errors.ErrInvalidInput, "platform does not support oauth")
)
