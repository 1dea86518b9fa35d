package service

import (
	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
)

// AEADCipherFactory implements the CipherFactory interface for creating AEAD cipher instances.
type AEADCipherFactory struct{}

// NewCipherFactory creates a new AEADCipherFactory.
func NewCipherFactory() *AEADCipherFactory {
	return &AEADCipherFactory{}
}

// CreateCipher creates an AEAD cipher instance for the specified algorithm.
// Returns ErrInvalidKeySize if key is not 32 bytes or ErrUnsupportedAlgorithm if algorithm is unknown.
func (f *AEADCipherFactory) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	// Validate key size
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	// Create cipher based on algorithm
	switch alg {
	case cryptoDomain.AESGCM:
		return NewAESGCM(key)
	case cryptoDomain.ChaCha20:
		return NewChaCha20Poly1305(key)
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}
