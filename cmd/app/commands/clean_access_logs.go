package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// RunCleanAccessLogs deletes access log entries older than the specified
// number of days. Supports both text and JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunCleanAccessLogs(
	ctx context.Context,
	accessLogUseCase vaultUseCase.AccessLogUseCase,
	logger *slog.Logger,
	out io.Writer,
	days int,
	format string,
) error {
	// Validate days parameter
	if days <= 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	logger.Info("cleaning access logs", slog.Int("days", days))

	retention := time.Duration(days) * 24 * time.Hour

	count, err := accessLogUseCase.DeleteOlderThan(ctx, retention)
	if err != nil {
		return fmt.Errorf("failed to delete access logs: %w", err)
	}

	// Output result based on format
	if format == "json" {
		if err := outputCleanJSON(out, count, days); err != nil {
			return err
		}
	} else {
		outputCleanText(out, count, days)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
	)

	return nil
}

// outputCleanText outputs the result in human-readable text format.
func outputCleanText(out io.Writer, count int64, days int) {
	fmt.Fprintf(out, "Successfully deleted %d access log(s) older than %d day(s)\n", count, days)
}

// outputCleanJSON outputs the result in JSON format for machine consumption.
func outputCleanJSON(out io.Writer, count int64, days int) error {
	result := map[string]interface{}{
		"count": count,
		"days":  days,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Fprintln(out, string(jsonBytes))
	return nil
}
