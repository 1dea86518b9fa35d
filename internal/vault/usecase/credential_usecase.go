package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	cryptoService "github.com/zeroapp/credvault/internal/crypto/service"
	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	"github.com/zeroapp/credvault/internal/kms"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// credentialUseCase implements CredentialManager.
type credentialUseCase struct {
	txManager      database.TxManager
	dataKeyRepo    DataKeyRepository
	credentialRepo CredentialRepository
	accessLogRepo  AccessLogRepository
	platformRepo   PlatformRepository
	kmsClient      kms.Client
	engine         cryptoService.Engine
	refresher      TokenRefresher
	algorithm      cryptoDomain.Algorithm
	expiryWindow   time.Duration
}

// NewCredentialUseCase creates a credential manager with the provided
// dependencies. algorithm is used for new encryptions; existing credentials
// decrypt with whatever algorithm they were stored under. A zero expiryWindow
// falls back to vaultDomain.DefaultExpiryWindow.
func NewCredentialUseCase(
	txManager database.TxManager,
	dataKeyRepo DataKeyRepository,
	credentialRepo CredentialRepository,
	accessLogRepo AccessLogRepository,
	platformRepo PlatformRepository,
	kmsClient kms.Client,
	engine cryptoService.Engine,
	refresher TokenRefresher,
	algorithm cryptoDomain.Algorithm,
	expiryWindow time.Duration,
) CredentialManager {
	if expiryWindow <= 0 {
		expiryWindow = vaultDomain.DefaultExpiryWindow
	}
	return &credentialUseCase{
		txManager:      txManager,
		dataKeyRepo:    dataKeyRepo,
		credentialRepo: credentialRepo,
		accessLogRepo:  accessLogRepo,
		platformRepo:   platformRepo,
		kmsClient:      kmsClient,
		engine:         engine,
		refresher:      refresher,
		algorithm:      algorithm,
		expiryWindow:   expiryWindow,
	}
}

// credentialAAD binds a ciphertext to its owner and location. A payload copied
// to another user's row or another platform fails authentication on decrypt.
func credentialAAD(userID, platform, platformDomain string) []byte {
	return []byte(userID + "|" + platform + "|" + platformDomain)
}

// refreshAAD keeps the refresh-token payload from being swapped with the main
// payload of the same credential.
func refreshAAD(userID, platform, platformDomain string) []byte {
	return []byte(userID + "|" + platform + "|" + platformDomain + "|refresh")
}

// resolveDomain substitutes the platform's default domain for an empty
// platformDomain. Store and the read paths share it, so a credential stored
// without a domain is addressable without one.
func (c *credentialUseCase) resolveDomain(ctx context.Context, platform, platformDomain string) (string, error) {
	if platformDomain != "" {
		return platformDomain, nil
	}
	p, err := c.platformRepo.GetByName(ctx, platform)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return "", vaultDomain.ErrPlatformNotConfigured
		}
		return "", err
	}
	return p.DefaultDomain, nil
}

// Store encrypts and persists a credential under the user's data key,
// creating the key on the user's first store.
func (c *credentialUseCase) Store(ctx context.Context, input *StoreInput, access Access) (*vaultDomain.Summary, error) {
	if err := c.validateStoreInput(input); err != nil {
		return nil, err
	}

	platformDomain, err := c.resolveDomain(ctx, input.Platform, input.PlatformDomain)
	if err != nil {
		return nil, err
	}

	var summary *vaultDomain.Summary
	err = c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		key, dataKeyID, err := c.activeKeyForWrite(txCtx, input.UserID)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(key)

		plaintext, err := json.Marshal(input.Fields)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal credential fields")
		}
		defer cryptoDomain.Zero(plaintext)

		payload, err := c.engine.Encrypt(plaintext, key, c.algorithm, credentialAAD(input.UserID, input.Platform, platformDomain))
		if err != nil {
			return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
		}

		now := time.Now().UTC()
		credential := &vaultDomain.Credential{
			ID:             uuid.Must(uuid.NewV7()),
			UserID:         input.UserID,
			Platform:       input.Platform,
			PlatformDomain: platformDomain,
			Type:           input.Type,
			Ciphertext:     payload.Ciphertext,
			IV:             payload.IV,
			AuthTag:        payload.AuthTag,
			Algorithm:      payload.Algorithm,
			Scopes:         input.Scopes,
			ExpiresAt:      input.ExpiresAt,
			IsActive:       true,
			DataKeyID:      dataKeyID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if input.RefreshToken != "" {
			refreshPayload, err := c.engine.Encrypt(
				[]byte(input.RefreshToken), key, c.algorithm,
				refreshAAD(input.UserID, input.Platform, platformDomain),
			)
			if err != nil {
				return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
			}
			credential.RefreshCiphertext = refreshPayload.Ciphertext
			credential.RefreshIV = refreshPayload.IV
			credential.RefreshAuthTag = refreshPayload.AuthTag
		}

		created, err := c.credentialRepo.Upsert(txCtx, credential)
		if err != nil {
			return apperrors.Wrap(vaultDomain.ErrStorageFailed, err.Error())
		}

		op := vaultDomain.OpUpdate
		if created {
			op = vaultDomain.OpCreate
		}
		if err := c.audit(txCtx, &credential.ID, input.UserID, op, access, true, ""); err != nil {
			return err
		}

		summary = c.summarize(credential, now)
		return nil
	})
	if err != nil {
		c.auditFailure(ctx, nil, input.UserID, vaultDomain.OpCreate, access, err)
		return nil, err
	}

	return summary, nil
}

// Get decrypts a credential and records the read. Expired OAuth credentials
// are refreshed in place before being returned.
func (c *credentialUseCase) Get(ctx context.Context, userID, platform, platformDomain string, access Access) (*vaultDomain.DecryptedCredential, error) {
	var result *vaultDomain.DecryptedCredential
	var credentialID *uuid.UUID

	platformDomain, err := c.resolveDomain(ctx, platform, platformDomain)
	if err != nil {
		return nil, err
	}

	err = c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		credential, err := c.credentialRepo.GetActive(txCtx, userID, platform, platformDomain)
		if err != nil {
			return err
		}
		credentialID = &credential.ID

		key, err := c.unwrapKey(txCtx, credential)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(key)

		aad := credentialAAD(userID, platform, platformDomain)
		plaintext, err := c.engine.Decrypt(credential.Payload(), key, aad)
		if err != nil {
			if apperrors.Is(err, cryptoDomain.ErrIntegrityViolation) {
				slog.ErrorContext(ctx, "credential integrity violation detected",
					"user_id", userID,
					"platform", platform,
					"platform_domain", platformDomain,
					"credential_id", credential.ID,
				)
			}
			return err
		}
		defer cryptoDomain.Zero(plaintext)

		var fields vaultDomain.Fields
		if err := json.Unmarshal(plaintext, &fields); err != nil {
			return apperrors.Wrap(err, "failed to unmarshal credential fields")
		}

		now := time.Now().UTC()
		if credential.Expired(now) {
			if err := c.refresh(txCtx, credential, key, fields, access); err != nil {
				return apperrors.Wrap(vaultDomain.ErrCredentialExpired, err.Error())
			}
		}

		if err := c.credentialRepo.TouchLastUsed(txCtx, credential.ID, now); err != nil {
			return err
		}
		if err := c.audit(txCtx, &credential.ID, userID, vaultDomain.OpRead, access, true, ""); err != nil {
			return err
		}

		result = &vaultDomain.DecryptedCredential{
			ID:             credential.ID,
			Platform:       credential.Platform,
			PlatformDomain: credential.PlatformDomain,
			Type:           credential.Type,
			Fields:         fields,
			Scopes:         credential.Scopes,
			ExpiresAt:      credential.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		// A miss is not an access: nothing was read, nothing is audited.
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			failedAccess := access
			if apperrors.Is(err, vaultDomain.ErrCredentialExpired) {
				failedAccess.Reason = "expired"
			}
			c.auditFailure(ctx, credentialID, userID, vaultDomain.OpRead, failedAccess, err)
		}
		return nil, err
	}

	return result, nil
}

// refresh exchanges the stored refresh token for a fresh access token and
// re-encrypts the credential in place. Called with the user's data key already
// unwrapped and the credential row loaded in the current transaction.
func (c *credentialUseCase) refresh(
	ctx context.Context,
	credential *vaultDomain.Credential,
	key []byte,
	fields vaultDomain.Fields,
	access Access,
) error {
	if credential.Type != vaultDomain.TypeOAuth || !credential.HasRefreshToken() {
		return vaultDomain.ErrNoRefreshToken
	}

	platform, err := c.platformRepo.GetByName(ctx, credential.Platform)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return vaultDomain.ErrPlatformNotConfigured
		}
		return err
	}
	if !platform.SupportsOAuth() {
		return vaultDomain.ErrOAuthNotSupported
	}

	refreshAad := refreshAAD(credential.UserID, credential.Platform, credential.PlatformDomain)
	refreshToken, err := c.engine.Decrypt(credential.RefreshPayload(), key, refreshAad)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(refreshToken)

	token, err := c.refresher.Refresh(ctx, platform, string(refreshToken), credential.Scopes)
	if err != nil {
		return apperrors.Wrap(vaultDomain.ErrRefreshFailed, err.Error())
	}

	fields["access_token"] = token.AccessToken
	if token.TokenType != "" {
		fields["token_type"] = token.TokenType
	}

	plaintext, err := json.Marshal(fields)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal refreshed fields")
	}
	defer cryptoDomain.Zero(plaintext)

	aad := credentialAAD(credential.UserID, credential.Platform, credential.PlatformDomain)
	payload, err := c.engine.Encrypt(plaintext, key, c.algorithm, aad)
	if err != nil {
		return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
	}
	credential.Ciphertext = payload.Ciphertext
	credential.IV = payload.IV
	credential.AuthTag = payload.AuthTag
	credential.Algorithm = payload.Algorithm

	// Providers that rotate refresh tokens return a new one; otherwise the
	// current token is re-encrypted so both blobs stay under the same
	// algorithm as the credential row records.
	nextRefreshToken := refreshToken
	if token.RefreshToken != "" {
		nextRefreshToken = []byte(token.RefreshToken)
	}
	refreshPayload, err := c.engine.Encrypt(nextRefreshToken, key, c.algorithm, refreshAad)
	if err != nil {
		return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
	}
	credential.RefreshCiphertext = refreshPayload.Ciphertext
	credential.RefreshIV = refreshPayload.IV
	credential.RefreshAuthTag = refreshPayload.AuthTag

	now := time.Now().UTC()
	credential.ExpiresAt = token.ExpiresAt
	credential.UpdatedAt = now

	if err := c.credentialRepo.UpdateEncrypted(ctx, credential); err != nil {
		return err
	}

	return c.audit(ctx, &credential.ID, credential.UserID, vaultDomain.OpRefresh, access, true, "")
}

// Delete permanently removes a credential and records the deletion.
func (c *credentialUseCase) Delete(ctx context.Context, userID, platform, platformDomain string, access Access) error {
	var credentialID *uuid.UUID

	platformDomain, err := c.resolveDomain(ctx, platform, platformDomain)
	if err != nil {
		return err
	}

	err = c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		credential, err := c.credentialRepo.GetActive(txCtx, userID, platform, platformDomain)
		if err != nil {
			return err
		}
		credentialID = &credential.ID

		if err := c.credentialRepo.Delete(txCtx, credential.ID); err != nil {
			return err
		}
		return c.audit(txCtx, &credential.ID, userID, vaultDomain.OpDelete, access, true, "")
	})
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			c.auditFailure(ctx, credentialID, userID, vaultDomain.OpDelete, access, err)
		}
		return err
	}
	return nil
}

// Deactivate retires a credential without destroying its ciphertext. The row
// stays for audit history but no read path will return it; a later Store over
// the same platform and domain reactivates the slot.
func (c *credentialUseCase) Deactivate(ctx context.Context, userID, platform, platformDomain string, access Access) error {
	var credentialID *uuid.UUID

	platformDomain, err := c.resolveDomain(ctx, platform, platformDomain)
	if err != nil {
		return err
	}

	err = c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		credential, err := c.credentialRepo.GetActive(txCtx, userID, platform, platformDomain)
		if err != nil {
			return err
		}
		credentialID = &credential.ID

		if err := c.credentialRepo.Deactivate(txCtx, credential.ID, time.Now().UTC()); err != nil {
			return err
		}
		return c.audit(txCtx, &credential.ID, userID, vaultDomain.OpDelete, access, true, "")
	})
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			c.auditFailure(ctx, credentialID, userID, vaultDomain.OpDelete, access, err)
		}
		return err
	}
	return nil
}

// List returns metadata summaries for the user's credentials. No payload is
// decrypted; the whole listing produces a single access log entry.
func (c *credentialUseCase) List(ctx context.Context, userID string, access Access) ([]*vaultDomain.Summary, error) {
	var summaries []*vaultDomain.Summary

	err := c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		credentials, err := c.credentialRepo.ListByUser(txCtx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		summaries = make([]*vaultDomain.Summary, 0, len(credentials))
		for _, credential := range credentials {
			summaries = append(summaries, c.summarize(credential, now))
		}

		return c.audit(txCtx, nil, userID, vaultDomain.OpList, access, true, "")
	})
	if err != nil {
		c.auditFailure(ctx, nil, userID, vaultDomain.OpList, access, err)
		return nil, err
	}

	return summaries, nil
}

// RotateDataKey re-encrypts all of the user's credentials under a freshly
// minted data key. All steps happen in one transaction: either every
// credential moves to the new key or nothing changes.
func (c *credentialUseCase) RotateDataKey(ctx context.Context, userID string, access Access) (int, error) {
	var rotated int

	err := c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		oldKey, err := c.dataKeyRepo.GetActiveByUserForUpdate(txCtx, userID)
		if err != nil {
			return err
		}

		oldPlain, err := c.kmsClient.UnwrapDataKey(txCtx, oldKey.WrappedKey, userID)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(oldPlain)

		material, err := c.kmsClient.GenerateDataKey(txCtx, userID)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(material.Plaintext)

		credentials, err := c.credentialRepo.ListByDataKey(txCtx, oldKey.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		// The old key must leave active status before the new key claims it;
		// the single-active constraint rejects the opposite order.
		if err := c.dataKeyRepo.MarkRotated(txCtx, oldKey.ID, now); err != nil {
			return err
		}

		newKey := &vaultDomain.DataKey{
			ID:         uuid.Must(uuid.NewV7()),
			UserID:     userID,
			KMSKeyID:   material.KMSKeyID,
			WrappedKey: material.Wrapped,
			Algorithm:  c.algorithm,
			Status:     vaultDomain.KeyStatusActive,
			CreatedAt:  now,
		}
		if err := c.dataKeyRepo.Create(txCtx, newKey); err != nil {
			return err
		}

		for _, credential := range credentials {
			if err := c.reencrypt(credential, oldPlain, material.Plaintext, newKey.ID, now); err != nil {
				return err
			}
			if err := c.credentialRepo.UpdateEncrypted(txCtx, credential); err != nil {
				return err
			}
		}

		reason := fmt.Sprintf("rotated data key for %d credential(s)", len(credentials))
		if access.Reason != "" {
			reason = access.Reason
		}
		if err := c.audit(txCtx, nil, userID, vaultDomain.OpRotate, Access{Principal: access.Principal, Reason: reason}, true, ""); err != nil {
			return err
		}

		rotated = len(credentials)
		return nil
	})
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			c.auditFailure(ctx, nil, userID, vaultDomain.OpRotate, access, err)
		}
		return 0, err
	}

	return rotated, nil
}

// reencrypt decrypts both payloads of a credential under oldKey and encrypts
// them again under newKey, updating the credential in place.
func (c *credentialUseCase) reencrypt(
	credential *vaultDomain.Credential,
	oldKey, newKey []byte,
	newKeyID uuid.UUID,
	now time.Time,
) error {
	aad := credentialAAD(credential.UserID, credential.Platform, credential.PlatformDomain)

	plaintext, err := c.engine.Decrypt(credential.Payload(), oldKey, aad)
	if err != nil {
		return err
	}
	payload, err := c.engine.Encrypt(plaintext, newKey, c.algorithm, aad)
	cryptoDomain.Zero(plaintext)
	if err != nil {
		return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
	}
	credential.Ciphertext = payload.Ciphertext
	credential.IV = payload.IV
	credential.AuthTag = payload.AuthTag

	if credential.HasRefreshToken() {
		refreshAad := refreshAAD(credential.UserID, credential.Platform, credential.PlatformDomain)
		refreshPlain, err := c.engine.Decrypt(credential.RefreshPayload(), oldKey, refreshAad)
		if err != nil {
			return err
		}
		refreshPayload, err := c.engine.Encrypt(refreshPlain, newKey, c.algorithm, refreshAad)
		cryptoDomain.Zero(refreshPlain)
		if err != nil {
			return apperrors.Wrap(vaultDomain.ErrEncryptionFailed, err.Error())
		}
		credential.RefreshCiphertext = refreshPayload.Ciphertext
		credential.RefreshIV = refreshPayload.IV
		credential.RefreshAuthTag = refreshPayload.AuthTag
	}

	credential.Algorithm = c.algorithm
	credential.DataKeyID = newKeyID
	credential.UpdatedAt = now
	return nil
}

// activeKeyForWrite returns the plaintext of the user's active data key,
// minting one on first use. The key row is locked for the rest of the
// transaction, serializing concurrent writes for this user.
func (c *credentialUseCase) activeKeyForWrite(ctx context.Context, userID string) ([]byte, uuid.UUID, error) {
	dataKey, err := c.dataKeyRepo.GetActiveByUserForUpdate(ctx, userID)
	if err == nil {
		key, err := c.kmsClient.UnwrapDataKey(ctx, dataKey.WrappedKey, userID)
		if err != nil {
			return nil, uuid.Nil, err
		}
		return key, dataKey.ID, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, uuid.Nil, err
	}

	// First credential for this user: mint a data key.
	material, err := c.kmsClient.GenerateDataKey(ctx, userID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	dataKey = &vaultDomain.DataKey{
		ID:         uuid.Must(uuid.NewV7()),
		UserID:     userID,
		KMSKeyID:   material.KMSKeyID,
		WrappedKey: material.Wrapped,
		Algorithm:  c.algorithm,
		Status:     vaultDomain.KeyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.dataKeyRepo.Create(ctx, dataKey); err != nil {
		cryptoDomain.Zero(material.Plaintext)
		if !apperrors.Is(err, apperrors.ErrConflict) {
			return nil, uuid.Nil, err
		}
		// A concurrent first write minted the key between our lookup and the
		// insert. Lock and use the winner's key.
		dataKey, err = c.dataKeyRepo.GetActiveByUserForUpdate(ctx, userID)
		if err != nil {
			return nil, uuid.Nil, err
		}
		key, err := c.kmsClient.UnwrapDataKey(ctx, dataKey.WrappedKey, userID)
		if err != nil {
			return nil, uuid.Nil, err
		}
		return key, dataKey.ID, nil
	}

	return material.Plaintext, dataKey.ID, nil
}

// unwrapKey loads the data key a credential is bound to and unwraps it via the KMS.
func (c *credentialUseCase) unwrapKey(ctx context.Context, credential *vaultDomain.Credential) ([]byte, error) {
	dataKey, err := c.dataKeyRepo.Get(ctx, credential.DataKeyID)
	if err != nil {
		return nil, err
	}
	return c.kmsClient.UnwrapDataKey(ctx, dataKey.WrappedKey, credential.UserID)
}

// audit appends an access log entry in the caller's transaction. A failed
// insert fails the caller: credential operations never commit unaudited.
func (c *credentialUseCase) audit(
	ctx context.Context,
	credentialID *uuid.UUID,
	userID string,
	op vaultDomain.Operation,
	access Access,
	success bool,
	errText string,
) error {
	entry := &vaultDomain.AccessLogEntry{
		ID:           uuid.Must(uuid.NewV7()),
		CredentialID: credentialID,
		UserID:       userID,
		Operation:    op,
		Principal:    access.Principal,
		Reason:       access.Reason,
		Success:      success,
		Error:        errText,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.accessLogRepo.Create(ctx, entry); err != nil {
		return apperrors.Wrap(err, "failed to write access log")
	}
	return nil
}

// auditFailure records a failed operation outside the rolled-back transaction.
// Best effort: if even this write fails there is nothing left to fail closed
// against, so the error is logged and dropped.
func (c *credentialUseCase) auditFailure(
	ctx context.Context,
	credentialID *uuid.UUID,
	userID string,
	op vaultDomain.Operation,
	access Access,
	opErr error,
) {
	if err := c.audit(ctx, credentialID, userID, op, access, false, opErr.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to record access log entry for failed operation",
			"user_id", userID,
			"operation", string(op),
			"error", err,
		)
	}
}

func (c *credentialUseCase) validateStoreInput(input *StoreInput) error {
	switch {
	case input.UserID == "":
		return apperrors.Wrap(apperrors.ErrInvalidInput, "user id is required")
	case input.Platform == "":
		return apperrors.Wrap(apperrors.ErrInvalidInput, "platform is required")
	case !input.Type.Valid():
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown credential type")
	case len(input.Fields) == 0:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "credential fields are required")
	}
	return nil
}

func (c *credentialUseCase) summarize(credential *vaultDomain.Credential, now time.Time) *vaultDomain.Summary {
	return &vaultDomain.Summary{
		ID:             credential.ID,
		Platform:       credential.Platform,
		PlatformDomain: credential.PlatformDomain,
		Type:           credential.Type,
		Status:         credential.Status(now, c.expiryWindow),
		ExpiresAt:      credential.ExpiresAt,
		LastUsedAt:     credential.LastUsedAt,
		CreatedAt:      credential.CreatedAt,
	}
}
