package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// PostgreSQLAccessLogRepository implements append-only access log persistence
// for PostgreSQL. Entries are only ever inserted; the single destructive
// operation is retention cleanup by age.
type PostgreSQLAccessLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAccessLogRepository creates a new PostgreSQL access log repository.
func NewPostgreSQLAccessLogRepository(db *sql.DB) *PostgreSQLAccessLogRepository {
	return &PostgreSQLAccessLogRepository{db: db}
}

const pgAccessLogColumns = `id, credential_id, user_id, operation, principal, reason, success, error, created_at`

// Create appends one access log entry. Callers run this inside the same
// transaction as the operation being audited, so a failed insert rolls the
// operation back with it.
func (p *PostgreSQLAccessLogRepository) Create(ctx context.Context, entry *vaultDomain.AccessLogEntry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO access_logs (` + pgAccessLogColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.CredentialID,
		entry.UserID,
		string(entry.Operation),
		entry.Principal,
		entry.Reason,
		entry.Success,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create access log entry")
	}
	return nil
}

// ListByUser retrieves a page of a user's access log entries, newest first.
func (p *PostgreSQLAccessLogRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*vaultDomain.AccessLogEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgAccessLogColumns + ` FROM access_logs
			  WHERE user_id = $1
			  ORDER BY created_at DESC, id DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access log entries")
	}
	defer rows.Close()

	var entries []*vaultDomain.AccessLogEntry
	for rows.Next() {
		var entry vaultDomain.AccessLogEntry
		var operation string
		err := rows.Scan(
			&entry.ID,
			&entry.CredentialID,
			&entry.UserID,
			&operation,
			&entry.Principal,
			&entry.Reason,
			&entry.Success,
			&entry.Error,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan access log entry")
		}
		entry.Operation = vaultDomain.Operation(operation)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list access log entries")
	}
	return entries, nil
}

// CountByUser returns the number of access log entries for a user.
func (p *PostgreSQLAccessLogRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	querier := database.GetTx(ctx, p.db)

	var count int
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_logs WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count access log entries")
	}
	return count, nil
}

// DeleteOlderThan removes entries created before the cutoff and returns how
// many were removed. Only the retention cleanup command calls this.
func (p *PostgreSQLAccessLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM access_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete access log entries")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return affected, nil
}
