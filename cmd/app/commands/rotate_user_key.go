package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// RunRotateUserKey rotates a user's data encryption key and re-encrypts every
// credential under the new key in a single transaction.
//
// Requirements: Database must be migrated and the KMS keeper reachable.
func RunRotateUserKey(
	ctx context.Context,
	manager vaultUseCase.CredentialManager,
	logger *slog.Logger,
	out io.Writer,
	userID string,
	reason string,
	format string,
) error {
	if userID == "" {
		return fmt.Errorf("user-id is required")
	}
	if reason == "" {
		reason = "manual key rotation"
	}

	logger.Info("rotating user data key", slog.String("user_id", userID))

	access := vaultUseCase.Access{Principal: "cli", Reason: reason}

	rotated, err := manager.RotateDataKey(ctx, userID, access)
	if err != nil {
		return fmt.Errorf("failed to rotate data key: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"user_id":             userID,
			"rotated_credentials": rotated,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(jsonBytes))
	} else {
		fmt.Fprintf(out, "Rotated data key for user %s; re-encrypted %d credential(s)\n", userID, rotated)
	}

	logger.Info("rotation completed",
		slog.String("user_id", userID),
		slog.Int("rotated_credentials", rotated),
	)

	return nil
}
