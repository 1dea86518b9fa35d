package usecase

import (
	"context"
	"time"

	"github.com/zeroapp/credvault/internal/metrics"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// credentialManagerWithMetrics decorates CredentialManager with metrics instrumentation.
type credentialManagerWithMetrics struct {
	next    CredentialManager
	metrics metrics.BusinessMetrics
}

// NewCredentialManagerWithMetrics wraps a CredentialManager with metrics recording.
func NewCredentialManagerWithMetrics(manager CredentialManager, m metrics.BusinessMetrics) CredentialManager {
	return &credentialManagerWithMetrics{
		next:    manager,
		metrics: m,
	}
}

func (c *credentialManagerWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordOperation(ctx, "vault", operation, status)
	c.metrics.RecordDuration(ctx, "vault", operation, time.Since(start), status)
}

// Store records metrics for credential store operations.
func (c *credentialManagerWithMetrics) Store(ctx context.Context, input *StoreInput, access Access) (*vaultDomain.Summary, error) {
	start := time.Now()
	summary, err := c.next.Store(ctx, input, access)
	c.record(ctx, "credential_store", start, err)
	return summary, err
}

// Get records metrics for credential read operations.
func (c *credentialManagerWithMetrics) Get(ctx context.Context, userID, platform, platformDomain string, access Access) (*vaultDomain.DecryptedCredential, error) {
	start := time.Now()
	credential, err := c.next.Get(ctx, userID, platform, platformDomain, access)
	c.record(ctx, "credential_get", start, err)
	return credential, err
}

// Delete records metrics for credential delete operations.
func (c *credentialManagerWithMetrics) Delete(ctx context.Context, userID, platform, platformDomain string, access Access) error {
	start := time.Now()
	err := c.next.Delete(ctx, userID, platform, platformDomain, access)
	c.record(ctx, "credential_delete", start, err)
	return err
}

// Deactivate records metrics for credential deactivation operations.
func (c *credentialManagerWithMetrics) Deactivate(ctx context.Context, userID, platform, platformDomain string, access Access) error {
	start := time.Now()
	err := c.next.Deactivate(ctx, userID, platform, platformDomain, access)
	c.record(ctx, "credential_deactivate", start, err)
	return err
}

// List records metrics for credential listing operations.
func (c *credentialManagerWithMetrics) List(ctx context.Context, userID string, access Access) ([]*vaultDomain.Summary, error) {
	start := time.Now()
	summaries, err := c.next.List(ctx, userID, access)
	c.record(ctx, "credential_list", start, err)
	return summaries, err
}

// RotateDataKey records metrics for data key rotation operations.
func (c *credentialManagerWithMetrics) RotateDataKey(ctx context.Context, userID string, access Access) (int, error) {
	start := time.Now()
	rotated, err := c.next.RotateDataKey(ctx, userID, access)
	c.record(ctx, "key_rotate", start, err)
	return rotated, err
}
