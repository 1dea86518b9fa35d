package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeroapp/credvault/internal/vault/usecase"
	vaultMocks "github.com/zeroapp/credvault/internal/vault/usecase/mocks"
)

func TestRunRotateUserKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output", func(t *testing.T) {
		mockManager := &vaultMocks.MockCredentialManager{}
		access := usecase.Access{Principal: "cli", Reason: "suspected key exposure"}
		mockManager.On("RotateDataKey", ctx, "user-1", access).Return(3, nil)

		var out bytes.Buffer
		err := RunRotateUserKey(ctx, mockManager, logger, &out, "user-1", "suspected key exposure", "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "re-encrypted 3 credential(s)")
		mockManager.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockManager := &vaultMocks.MockCredentialManager{}
		access := usecase.Access{Principal: "cli", Reason: "manual key rotation"}
		mockManager.On("RotateDataKey", ctx, "user-1", access).Return(2, nil)

		var out bytes.Buffer
		err := RunRotateUserKey(ctx, mockManager, logger, &out, "user-1", "", "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"rotated_credentials": 2`)
		require.Contains(t, out.String(), `"user_id": "user-1"`)
		mockManager.AssertExpectations(t)
	})

	t.Run("missing-user-id", func(t *testing.T) {
		mockManager := &vaultMocks.MockCredentialManager{}

		err := RunRotateUserKey(ctx, mockManager, logger, &bytes.Buffer{}, "", "", "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "user-id is required")
		mockManager.AssertNotCalled(t, "RotateDataKey")
	})
}
