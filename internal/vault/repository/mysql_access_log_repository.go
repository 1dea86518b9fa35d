package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// MySQLAccessLogRepository implements append-only access log persistence for MySQL.
type MySQLAccessLogRepository struct {
	db *sql.DB
}

// NewMySQLAccessLogRepository creates a new MySQL access log repository.
func NewMySQLAccessLogRepository(db *sql.DB) *MySQLAccessLogRepository {
	return &MySQLAccessLogRepository{db: db}
}

const mysqlAccessLogColumns = `id, credential_id, user_id, operation, principal, reason, success, error, created_at`

// Create appends one access log entry within the caller's transaction.
func (m *MySQLAccessLogRepository) Create(ctx context.Context, entry *vaultDomain.AccessLogEntry) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO access_logs (` + mysqlAccessLogColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := entry.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal access log id")
	}

	var credentialID []byte
	if entry.CredentialID != nil {
		credentialID, err = entry.CredentialID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal credential id")
		}
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		credentialID,
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
func (m *MySQLAccessLogRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*vaultDomain.AccessLogEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAccessLogColumns + ` FROM access_logs
			  WHERE user_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access log entries")
	}
	defer rows.Close()

	var entries []*vaultDomain.AccessLogEntry
	for rows.Next() {
		var entry vaultDomain.AccessLogEntry
		var idBytes, credentialIDBytes []byte
		var operation string
		err := rows.Scan(
			&idBytes,
			&credentialIDBytes,
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
		if err := entry.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal access log id")
		}
		if len(credentialIDBytes) > 0 {
			var credentialID uuid.UUID
			if err := credentialID.UnmarshalBinary(credentialIDBytes); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal credential id")
			}
			entry.CredentialID = &credentialID
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
func (m *MySQLAccessLogRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	querier := database.GetTx(ctx, m.db)

	var count int
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_logs WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count access log entries")
	}
	return count, nil
}

// DeleteOlderThan removes entries created before the cutoff and returns how
// many were removed.
func (m *MySQLAccessLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM access_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete access log entries")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return affected, nil
}
