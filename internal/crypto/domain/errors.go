package domain

import (
	"github.com/zeroapp/credvault/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// to provide context for cryptographic failures. All errors are mapped to
// appropriate HTTP status codes by the error handling layer.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	//
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305)
	// This error is returned when an invalid or unknown algorithm is specified.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	//
	// All keys must be exactly 32 bytes (256 bits) for both AES-256-GCM and
	// ChaCha20-Poly1305. This error is returned when a key of incorrect length
	// is provided.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidNonceSize indicates the initialization vector has the wrong length.
	ErrInvalidNonceSize = errors.Wrap(errors.ErrInvalidInput, "invalid nonce size")

	// ErrIntegrityViolation indicates authentication-tag verification failed during
	// decryption: the ciphertext, IV, tag, or associated data has been tampered
	// with or corrupted, or the wrong key was used.
	//
	// This is a security event, not a data-quality event. It must be logged
	// distinctly from ordinary errors and never retried with the same ciphertext.
	// For security reasons, the specific cause is not disclosed to callers.
	ErrIntegrityViolation = errors.New("integrity violation")
)
