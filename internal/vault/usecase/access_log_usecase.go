package usecase

import (
	"context"
	"time"

	apperrors "github.com/zeroapp/credvault/internal/errors"
)

// accessLogUseCase implements AccessLogUseCase.
type accessLogUseCase struct {
	accessLogRepo AccessLogRepository
}

// NewAccessLogUseCase creates an access log use case.
func NewAccessLogUseCase(accessLogRepo AccessLogRepository) AccessLogUseCase {
	return &accessLogUseCase{accessLogRepo: accessLogRepo}
}

// ListByUser returns a page of the user's access history, newest first.
// Reading the log is not itself an audited operation.
func (a *accessLogUseCase) ListByUser(ctx context.Context, userID string, offset, limit int) (*AccessLogPage, error) {
	entries, err := a.accessLogRepo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}

	total, err := a.accessLogRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &AccessLogPage{Entries: entries, Total: total}, nil
}

// DeleteOlderThan removes entries older than the retention period, returning
// how many were removed.
func (a *accessLogUseCase) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "retention must be positive")
	}
	cutoff := time.Now().UTC().Add(-retention)
	return a.accessLogRepo.DeleteOlderThan(ctx, cutoff)
}
