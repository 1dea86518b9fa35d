// Package mocks provides mock implementations of the vault use case
// interfaces for testing HTTP handlers and CLI commands.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	"github.com/zeroapp/credvault/internal/vault/usecase"
)

// MockCredentialManager is a mock implementation of CredentialManager.
type MockCredentialManager struct {
	mock.Mock
}

// Store mocks the Store method of CredentialManager.
func (m *MockCredentialManager) Store(ctx context.Context, input *usecase.StoreInput, access usecase.Access) (*vaultDomain.Summary, error) {
	args := m.Called(ctx, input, access)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.Summary), args.Error(1)
}

// Get mocks the Get method of CredentialManager.
func (m *MockCredentialManager) Get(ctx context.Context, userID, platform, platformDomain string, access usecase.Access) (*vaultDomain.DecryptedCredential, error) {
	args := m.Called(ctx, userID, platform, platformDomain, access)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.DecryptedCredential), args.Error(1)
}

// Delete mocks the Delete method of CredentialManager.
func (m *MockCredentialManager) Delete(ctx context.Context, userID, platform, platformDomain string, access usecase.Access) error {
	args := m.Called(ctx, userID, platform, platformDomain, access)
	return args.Error(0)
}

// Deactivate mocks the Deactivate method of CredentialManager.
func (m *MockCredentialManager) Deactivate(ctx context.Context, userID, platform, platformDomain string, access usecase.Access) error {
	args := m.Called(ctx, userID, platform, platformDomain, access)
	return args.Error(0)
}

// List mocks the List method of CredentialManager.
func (m *MockCredentialManager) List(ctx context.Context, userID string, access usecase.Access) ([]*vaultDomain.Summary, error) {
	args := m.Called(ctx, userID, access)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vaultDomain.Summary), args.Error(1)
}

// RotateDataKey mocks the RotateDataKey method of CredentialManager.
func (m *MockCredentialManager) RotateDataKey(ctx context.Context, userID string, access usecase.Access) (int, error) {
	args := m.Called(ctx, userID, access)
	return args.Int(0), args.Error(1)
}

// MockAccessLogUseCase is a mock implementation of AccessLogUseCase.
type MockAccessLogUseCase struct {
	mock.Mock
}

// ListByUser mocks the ListByUser method of AccessLogUseCase.
func (m *MockAccessLogUseCase) ListByUser(ctx context.Context, userID string, offset, limit int) (*usecase.AccessLogPage, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AccessLogPage), args.Error(1)
}

// DeleteOlderThan mocks the DeleteOlderThan method of AccessLogUseCase.
func (m *MockAccessLogUseCase) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

// MockPlatformUseCase is a mock implementation of PlatformUseCase.
type MockPlatformUseCase struct {
	mock.Mock
}

// GetByName mocks the GetByName method of PlatformUseCase.
func (m *MockPlatformUseCase) GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vaultDomain.Platform), args.Error(1)
}

// List mocks the List method of PlatformUseCase.
func (m *MockPlatformUseCase) List(ctx context.Context) ([]*vaultDomain.Platform, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vaultDomain.Platform), args.Error(1)
}

// Seed mocks the Seed method of PlatformUseCase.
func (m *MockPlatformUseCase) Seed(ctx context.Context, platforms []*vaultDomain.Platform) error {
	args := m.Called(ctx, platforms)
	return args.Error(0)
}

// MockTokenRefresher is a mock implementation of TokenRefresher.
type MockTokenRefresher struct {
	mock.Mock
}

// Refresh mocks the Refresh method of TokenRefresher.
func (m *MockTokenRefresher) Refresh(ctx context.Context, platform *vaultDomain.Platform, refreshToken string, scopes []string) (*usecase.RefreshedToken, error) {
	args := m.Called(ctx, platform, refreshToken, scopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RefreshedToken), args.Error(1)
}
