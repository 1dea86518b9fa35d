package kms

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
)

// MemoryClient is an in-memory Client implementation for tests.
//
// It wraps data keys with a locally generated AES-256-GCM key encryption key
// and applies the same user/purpose context binding as the production client,
// so crypto correctness can be tested without network access. Errors can be
// injected per operation to exercise failure paths.
type MemoryClient struct {
	mu   sync.Mutex
	aead cipher.AEAD

	// GenerateErr and UnwrapErr, when set, are returned by the corresponding
	// operation instead of performing it.
	GenerateErr error
	UnwrapErr   error

	// GenerateCalls and UnwrapCalls count invocations.
	GenerateCalls int
	UnwrapCalls   int
}

// NewMemoryClient creates a MemoryClient with a random local key encryption key.
func NewMemoryClient() (*MemoryClient, error) {
	kek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(kek); err != nil {
		return nil, fmt.Errorf("failed to generate local kek: %w", err)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create local kek cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create local kek gcm: %w", err)
	}

	return &MemoryClient{aead: aead}, nil
}

// GenerateDataKey mints and wraps a fresh data key locally.
func (m *MemoryClient) GenerateDataKey(ctx context.Context, userID string) (DataKeyMaterial, error) {
	m.mu.Lock()
	m.GenerateCalls++
	injected := m.GenerateErr
	m.mu.Unlock()
	if injected != nil {
		return DataKeyMaterial{}, injected
	}

	plaintext := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(plaintext); err != nil {
		return DataKeyMaterial{}, fmt.Errorf("failed to generate data key: %w", err)
	}

	envelope, err := json.Marshal(keyEnvelope{UserID: userID, Purpose: keyPurpose, Key: plaintext})
	if err != nil {
		return DataKeyMaterial{}, fmt.Errorf("failed to marshal key envelope: %w", err)
	}
	defer cryptoDomain.Zero(envelope)

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return DataKeyMaterial{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	wrapped := m.aead.Seal(nonce, nonce, envelope, nil)

	return DataKeyMaterial{Plaintext: plaintext, Wrapped: wrapped, KMSKeyID: "memory://local"}, nil
}

// UnwrapDataKey decrypts a locally wrapped data key and verifies its context.
func (m *MemoryClient) UnwrapDataKey(ctx context.Context, wrapped []byte, userID string) ([]byte, error) {
	m.mu.Lock()
	m.UnwrapCalls++
	injected := m.UnwrapErr
	m.mu.Unlock()
	if injected != nil {
		return nil, injected
	}

	if len(wrapped) < m.aead.NonceSize() {
		return nil, ErrKeyServiceUnavailable
	}

	nonce, sealed := wrapped[:m.aead.NonceSize()], wrapped[m.aead.NonceSize():]
	decrypted, err := m.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyServiceUnavailable, err)
	}
	defer cryptoDomain.Zero(decrypted)

	var envelope keyEnvelope
	if err := json.Unmarshal(decrypted, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key envelope: %w", err)
	}

	if envelope.UserID != userID || envelope.Purpose != keyPurpose {
		cryptoDomain.Zero(envelope.Key)
		return nil, ErrKeyContextMismatch
	}

	return envelope.Key, nil
}
