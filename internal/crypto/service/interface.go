// Package service provides the authenticated encryption engine used to protect
// credential payloads. Implements AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305)
// behind a stateless Engine that never stores key material.
package service

import (
	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	// The authentication tag is appended to the returned ciphertext.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// CipherFactory defines the interface for creating AEAD cipher instances.
type CipherFactory interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Engine performs authenticated symmetric encryption and decryption of arbitrary
// byte payloads using a caller-supplied plaintext key. It is stateless: key
// material is the caller's responsibility to zero after each call returns.
type Engine interface {
	// Encrypt encrypts plaintext under key with a fresh random IV and returns
	// ciphertext, IV, and authentication tag separately.
	Encrypt(plaintext, key []byte, alg cryptoDomain.Algorithm, aad []byte) (cryptoDomain.EncryptedPayload, error)

	// Decrypt verifies the authentication tag and decrypts the payload.
	// Tag mismatch returns cryptoDomain.ErrIntegrityViolation.
	Decrypt(payload cryptoDomain.EncryptedPayload, key, aad []byte) ([]byte, error)
}
