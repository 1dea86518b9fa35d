package kms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gocloud.dev/gcerrors"
	"gocloud.dev/secrets"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// keyEnvelope is the structure wrapped by the KMS keeper. The user id and
// purpose ride inside the authenticated blob so that a wrapped key presented
// under a different context fails on unwrap.
type keyEnvelope struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	Key     []byte `json:"key"`
}

// KeeperClient implements Client using a gocloud.dev/secrets keeper.
//
// Supported key URIs: gcpkms://, awskms://, azurekeyvault://, hashivault://,
// base64key:// (local development). Every call is logged with its duration for
// latency monitoring; the client holds no mutable state beyond the keeper.
type KeeperClient struct {
	keeper   *secrets.Keeper
	kmsKeyID string
	logger   *slog.Logger
}

// NewKeeperClient opens a secrets keeper for the configured KMS key URI.
func NewKeeperClient(ctx context.Context, keyURI string, logger *slog.Logger) (*KeeperClient, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return &KeeperClient{keeper: keeper, kmsKeyID: keyURI, logger: logger}, nil
}

// GenerateDataKey mints a fresh random 256-bit data key and wraps it under the
// KMS master key, bound to the user's encryption context.
func (c *KeeperClient) GenerateDataKey(ctx context.Context, userID string) (DataKeyMaterial, error) {
	start := time.Now()

	plaintext := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(plaintext); err != nil {
		return DataKeyMaterial{}, fmt.Errorf("failed to generate data key: %w", err)
	}

	envelope, err := json.Marshal(keyEnvelope{UserID: userID, Purpose: keyPurpose, Key: plaintext})
	if err != nil {
		cryptoDomain.Zero(plaintext)
		return DataKeyMaterial{}, fmt.Errorf("failed to marshal key envelope: %w", err)
	}
	defer cryptoDomain.Zero(envelope)

	wrapped, err := c.keeper.Encrypt(ctx, envelope)
	c.logCall(ctx, "generate_data_key", userID, start, err)
	if err != nil {
		cryptoDomain.Zero(plaintext)
		return DataKeyMaterial{}, mapKeeperError(err)
	}

	return DataKeyMaterial{Plaintext: plaintext, Wrapped: wrapped, KMSKeyID: c.kmsKeyID}, nil
}

// UnwrapDataKey decrypts a wrapped data key and verifies its encryption
// context. A mismatched user id or purpose returns ErrKeyContextMismatch.
func (c *KeeperClient) UnwrapDataKey(ctx context.Context, wrapped []byte, userID string) ([]byte, error) {
	start := time.Now()

	decrypted, err := c.keeper.Decrypt(ctx, wrapped)
	c.logCall(ctx, "unwrap_data_key", userID, start, err)
	if err != nil {
		return nil, mapKeeperError(err)
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

// Close releases the underlying keeper connection.
func (c *KeeperClient) Close() error {
	return c.keeper.Close()
}

// logCall records every KMS round trip with its duration for latency monitoring.
func (c *KeeperClient) logCall(ctx context.Context, operation, userID string, start time.Time, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		c.logger.ErrorContext(ctx, "kms call failed", attrs...)
		return
	}
	c.logger.InfoContext(ctx, "kms call completed", attrs...)
}

// mapKeeperError translates gocloud error codes into the vault error taxonomy:
// authorization failures are fatal, everything else is treated as transient.
func mapKeeperError(err error) error {
	if gcerrors.Code(err) == gcerrors.PermissionDenied {
		return fmt.Errorf("%w: %w", ErrKeyServicePermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrKeyServiceUnavailable, err)
}
