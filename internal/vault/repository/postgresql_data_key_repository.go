// Package repository implements data persistence for the credential vault.
//
// Repositories support both PostgreSQL and MySQL using database/sql with raw
// queries. All methods are transaction-aware via database.GetTx(): when called
// inside TxManager.WithTx they share the enclosing transaction, which is how
// the vault gets atomic upserts, fail-closed audit writes, and per-user
// serialization through row-level locks.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// PostgreSQLDataKeyRepository implements per-user data key persistence for PostgreSQL.
//
// The single-active-key-per-user invariant is enforced by a partial unique
// index, so a write race cannot produce two active keys no matter what the
// application layer does.
type PostgreSQLDataKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLDataKeyRepository creates a new PostgreSQL data key repository.
func NewPostgreSQLDataKeyRepository(db *sql.DB) *PostgreSQLDataKeyRepository {
	return &PostgreSQLDataKeyRepository{db: db}
}

const pgDataKeyColumns = `id, user_id, kms_key_id, wrapped_key, algorithm, status, created_at, rotated_at`

// Create inserts a new data key. The partial unique index allows only one
// active key per user; a second active insert is reported as ErrConflict.
// ON CONFLICT DO NOTHING keeps the enclosing transaction usable after the
// conflict, which a raw uniqueness violation would abort.
func (p *PostgreSQLDataKeyRepository) Create(ctx context.Context, key *vaultDomain.DataKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO user_data_keys (` + pgDataKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.UserID,
		key.KMSKeyID,
		key.WrappedKey,
		string(key.Algorithm),
		string(key.Status),
		key.CreatedAt,
		key.RotatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create data key")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// Get retrieves a data key by its ID.
func (p *PostgreSQLDataKeyRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgDataKeyColumns + ` FROM user_data_keys WHERE id = $1`

	return scanPgDataKey(querier.QueryRowContext(ctx, query, id))
}

// GetActiveByUser retrieves the user's single active data key.
func (p *PostgreSQLDataKeyRepository) GetActiveByUser(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgDataKeyColumns + ` FROM user_data_keys
			  WHERE user_id = $1 AND status = 'active'`

	return scanPgDataKey(querier.QueryRowContext(ctx, query, userID))
}

// GetActiveByUserForUpdate retrieves the user's active data key and locks its
// row until the enclosing transaction ends. This is the per-user serialization
// point: concurrent stores and rotations for the same user queue behind this
// lock while other users proceed unaffected.
func (p *PostgreSQLDataKeyRepository) GetActiveByUserForUpdate(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgDataKeyColumns + ` FROM user_data_keys
			  WHERE user_id = $1 AND status = 'active'
			  FOR UPDATE`

	return scanPgDataKey(querier.QueryRowContext(ctx, query, userID))
}

// MarkRotated transitions a data key from active to rotated. Rotated keys are
// never deleted; they remain for forensic and audit needs.
func (p *PostgreSQLDataKeyRepository) MarkRotated(ctx context.Context, id uuid.UUID, rotatedAt time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE user_data_keys SET status = 'rotated', rotated_at = $1
			  WHERE id = $2 AND status = 'active'`

	result, err := querier.ExecContext(ctx, query, rotatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark data key rotated")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scanPgDataKey scans a single data key row, mapping sql.ErrNoRows to ErrNotFound.
func scanPgDataKey(row *sql.Row) (*vaultDomain.DataKey, error) {
	var key vaultDomain.DataKey
	var algorithm, status string

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.KMSKeyID,
		&key.WrappedKey,
		&algorithm,
		&status,
		&key.CreatedAt,
		&key.RotatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get data key")
	}

	key.Algorithm = cryptoDomain.Algorithm(algorithm)
	key.Status = vaultDomain.KeyStatus(status)
	return &key, nil
}
