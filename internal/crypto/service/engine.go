package service

import (
	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	apperrors "github.com/zeroapp/credvault/internal/errors"
)

// aeadEngine implements the Engine interface on top of a CipherFactory.
//
// The engine is stateless: it holds no key material and derives a fresh cipher
// instance per call from the caller-supplied key. The authentication tag is
// split from the sealed output so that storage persists ciphertext, IV, and tag
// as separate columns.
type aeadEngine struct {
	factory CipherFactory
}

// NewEngine creates a new authenticated encryption engine.
func NewEngine(factory CipherFactory) Engine {
	return &aeadEngine{factory: factory}
}

// Encrypt encrypts plaintext under key using the given algorithm.
//
// A fresh random 96-bit IV is generated per call; IV reuse under the same key
// never happens because generation is delegated to crypto/rand inside the
// cipher. Returns ciphertext, IV, and the 128-bit authentication tag
// separately.
func (e *aeadEngine) Encrypt(
	plaintext, key []byte,
	alg cryptoDomain.Algorithm,
	aad []byte,
) (cryptoDomain.EncryptedPayload, error) {
	cipher, err := e.factory.CreateCipher(key, alg)
	if err != nil {
		return cryptoDomain.EncryptedPayload{}, err
	}

	sealed, iv, err := cipher.Encrypt(plaintext, aad)
	if err != nil {
		return cryptoDomain.EncryptedPayload{}, apperrors.Wrap(err, "encrypt failed")
	}

	// The AEAD appends the tag to the ciphertext; split it off.
	tagStart := len(sealed) - cryptoDomain.TagSize
	return cryptoDomain.EncryptedPayload{
		Ciphertext: sealed[:tagStart:tagStart],
		IV:         iv,
		AuthTag:    sealed[tagStart:],
		Algorithm:  alg,
	}, nil
}

// Decrypt verifies the authentication tag and decrypts the payload.
//
// Tag verification is part of the AEAD open operation: a mismatch returns
// ErrIntegrityViolation, distinguished from decode errors because it indicates
// tampered or corrupted data rather than a malformed request.
func (e *aeadEngine) Decrypt(
	payload cryptoDomain.EncryptedPayload,
	key, aad []byte,
) ([]byte, error) {
	cipher, err := e.factory.CreateCipher(key, payload.Algorithm)
	if err != nil {
		return nil, err
	}

	if len(payload.IV) != cryptoDomain.NonceSize {
		return nil, cryptoDomain.ErrInvalidNonceSize
	}

	sealed := make([]byte, 0, len(payload.Ciphertext)+len(payload.AuthTag))
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.AuthTag...)

	plaintext, err := cipher.Decrypt(sealed, payload.IV, aad)
	if err != nil {
		return nil, cryptoDomain.ErrIntegrityViolation
	}
	return plaintext, nil
}
