package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// MySQLDataKeyRepository implements per-user data key persistence for MySQL.
// Uses BINARY(16) for UUIDs; the single-active-key invariant is enforced by a
// unique key over (user_id, active_marker) where active_marker is a generated
// column that is NULL for non-active rows.
type MySQLDataKeyRepository struct {
	db *sql.DB
}

// NewMySQLDataKeyRepository creates a new MySQL data key repository.
func NewMySQLDataKeyRepository(db *sql.DB) *MySQLDataKeyRepository {
	return &MySQLDataKeyRepository{db: db}
}

const mysqlDataKeyColumns = `id, user_id, kms_key_id, wrapped_key, algorithm, status, created_at, rotated_at`

// Create inserts a new data key into the MySQL database. A second active key
// for the same user trips the (user_id, active_marker) unique key and is
// reported as ErrConflict; InnoDB keeps the transaction usable afterwards.
func (m *MySQLDataKeyRepository) Create(ctx context.Context, key *vaultDomain.DataKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO user_data_keys (` + mysqlDataKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal data key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		key.UserID,
		key.KMSKeyID,
		key.WrappedKey,
		string(key.Algorithm),
		string(key.Status),
		key.CreatedAt,
		key.RotatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if apperrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return apperrors.ErrConflict
		}
		return apperrors.Wrap(err, "failed to create data key")
	}
	return nil
}

// Get retrieves a data key by its ID from the MySQL database.
func (m *MySQLDataKeyRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlDataKeyColumns + ` FROM user_data_keys WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal data key id")
	}

	return scanMySQLDataKey(querier.QueryRowContext(ctx, query, idBytes))
}

// GetActiveByUser retrieves the user's single active data key.
func (m *MySQLDataKeyRepository) GetActiveByUser(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlDataKeyColumns + ` FROM user_data_keys
			  WHERE user_id = ? AND status = 'active'`

	return scanMySQLDataKey(querier.QueryRowContext(ctx, query, userID))
}

// GetActiveByUserForUpdate retrieves the user's active data key and locks its
// row until the enclosing transaction ends, serializing writes per user.
func (m *MySQLDataKeyRepository) GetActiveByUserForUpdate(ctx context.Context, userID string) (*vaultDomain.DataKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlDataKeyColumns + ` FROM user_data_keys
			  WHERE user_id = ? AND status = 'active'
			  FOR UPDATE`

	return scanMySQLDataKey(querier.QueryRowContext(ctx, query, userID))
}

// MarkRotated transitions a data key from active to rotated.
func (m *MySQLDataKeyRepository) MarkRotated(ctx context.Context, id uuid.UUID, rotatedAt time.Time) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE user_data_keys SET status = 'rotated', rotated_at = ?
			  WHERE id = ? AND status = 'active'`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal data key id")
	}

	result, err := querier.ExecContext(ctx, query, rotatedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark data key rotated")
	}
	return requireAffected(result)
}

func scanMySQLDataKey(row *sql.Row) (*vaultDomain.DataKey, error) {
	var key vaultDomain.DataKey
	var idBytes []byte
	var algorithm, status string

	err := row.Scan(
		&idBytes,
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

	if err := key.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal data key id")
	}
	key.Algorithm = cryptoDomain.Algorithm(algorithm)
	key.Status = vaultDomain.KeyStatus(status)
	return &key, nil
}
