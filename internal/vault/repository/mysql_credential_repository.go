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

// MySQLCredentialRepository implements encrypted credential persistence for MySQL.
type MySQLCredentialRepository struct {
	db *sql.DB
}

// NewMySQLCredentialRepository creates a new MySQL credential repository.
func NewMySQLCredentialRepository(db *sql.DB) *MySQLCredentialRepository {
	return &MySQLCredentialRepository{db: db}
}

const mysqlCredentialColumns = `id, user_id, platform, platform_domain, credential_type,
	ciphertext, iv, auth_tag, algorithm,
	refresh_ciphertext, refresh_iv, refresh_auth_tag,
	scopes, expires_at, is_active, data_key_id,
	created_at, updated_at, last_used_at`

// Upsert inserts the credential or replaces the encrypted payload of the
// existing (user_id, platform, platform_domain) row, preserving its id and
// created_at. MySQL's ON DUPLICATE KEY cannot return the surviving row's id,
// so the existing row is located with a locking read first; callers always run
// Upsert inside a transaction that already holds the user's data key lock, so
// two stores for the same triple cannot interleave. Returns whether a new row
// was created.
func (m *MySQLCredentialRepository) Upsert(ctx context.Context, credential *vaultDomain.Credential) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	lookup := `SELECT id, created_at FROM credentials
			   WHERE user_id = ? AND platform = ? AND platform_domain = ?
			   FOR UPDATE`

	var existingID []byte
	var createdAt time.Time
	err := querier.QueryRowContext(ctx, lookup, credential.UserID, credential.Platform, credential.PlatformDomain).
		Scan(&existingID, &createdAt)
	if err != nil && err != sql.ErrNoRows {
		return false, apperrors.Wrap(err, "failed to look up credential")
	}

	if err == sql.ErrNoRows {
		if err := m.insert(ctx, querier, credential); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := credential.ID.UnmarshalBinary(existingID); err != nil {
		return false, apperrors.Wrap(err, "failed to unmarshal credential id")
	}
	credential.CreatedAt = createdAt
	if err := m.replace(ctx, querier, credential); err != nil {
		return false, err
	}
	return false, nil
}

func (m *MySQLCredentialRepository) insert(ctx context.Context, querier database.Querier, credential *vaultDomain.Credential) error {
	query := `INSERT INTO credentials (` + mysqlCredentialColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := credential.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	dataKeyID, err := credential.DataKeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal data key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		credential.UserID,
		credential.Platform,
		credential.PlatformDomain,
		string(credential.Type),
		credential.Ciphertext,
		credential.IV,
		credential.AuthTag,
		string(credential.Algorithm),
		credential.RefreshCiphertext,
		credential.RefreshIV,
		credential.RefreshAuthTag,
		joinScopes(credential.Scopes),
		credential.ExpiresAt,
		credential.IsActive,
		dataKeyID,
		credential.CreatedAt,
		credential.UpdatedAt,
		credential.LastUsedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

func (m *MySQLCredentialRepository) replace(ctx context.Context, querier database.Querier, credential *vaultDomain.Credential) error {
	query := `UPDATE credentials SET
				  credential_type = ?, ciphertext = ?, iv = ?, auth_tag = ?, algorithm = ?,
				  refresh_ciphertext = ?, refresh_iv = ?, refresh_auth_tag = ?,
				  scopes = ?, expires_at = ?, is_active = ?, data_key_id = ?, updated_at = ?
			  WHERE id = ?`

	id, err := credential.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	dataKeyID, err := credential.DataKeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal data key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		string(credential.Type),
		credential.Ciphertext,
		credential.IV,
		credential.AuthTag,
		string(credential.Algorithm),
		credential.RefreshCiphertext,
		credential.RefreshIV,
		credential.RefreshAuthTag,
		joinScopes(credential.Scopes),
		credential.ExpiresAt,
		credential.IsActive,
		dataKeyID,
		credential.UpdatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}
	return nil
}

// GetActive retrieves the active credential for a (user, platform, domain) triple.
func (m *MySQLCredentialRepository) GetActive(ctx context.Context, userID, platform, platformDomain string) (*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlCredentialColumns + ` FROM credentials
			  WHERE user_id = ? AND platform = ? AND platform_domain = ? AND is_active = TRUE`

	credential, err := scanMySQLCredential(querier.QueryRowContext(ctx, query, userID, platform, platformDomain))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get credential")
	}
	return credential, nil
}

// ListByUser retrieves all of a user's credentials ordered by platform then domain.
func (m *MySQLCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlCredentialColumns + ` FROM credentials
			  WHERE user_id = ?
			  ORDER BY platform, platform_domain`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close()

	return collectMySQLCredentials(rows)
}

// ListByDataKey retrieves every credential encrypted under the given data key.
func (m *MySQLCredentialRepository) ListByDataKey(ctx context.Context, dataKeyID uuid.UUID) ([]*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlCredentialColumns + ` FROM credentials WHERE data_key_id = ?`

	idBytes, err := dataKeyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal data key id")
	}

	rows, err := querier.QueryContext(ctx, query, idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials by data key")
	}
	defer rows.Close()

	return collectMySQLCredentials(rows)
}

// UpdateEncrypted replaces a credential's encrypted payloads and key binding.
func (m *MySQLCredentialRepository) UpdateEncrypted(ctx context.Context, credential *vaultDomain.Credential) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE credentials SET
				  ciphertext = ?, iv = ?, auth_tag = ?, algorithm = ?,
				  refresh_ciphertext = ?, refresh_iv = ?, refresh_auth_tag = ?,
				  expires_at = ?, data_key_id = ?, updated_at = ?
			  WHERE id = ?`

	id, err := credential.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	dataKeyID, err := credential.DataKeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal data key id")
	}

	result, err := querier.ExecContext(
		ctx,
		query,
		credential.Ciphertext,
		credential.IV,
		credential.AuthTag,
		string(credential.Algorithm),
		credential.RefreshCiphertext,
		credential.RefreshIV,
		credential.RefreshAuthTag,
		credential.ExpiresAt,
		dataKeyID,
		credential.UpdatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}
	return requireAffected(result)
}

// TouchLastUsed records a successful read without touching updated_at.
func (m *MySQLCredentialRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	result, err := querier.ExecContext(ctx, `UPDATE credentials SET last_used_at = ? WHERE id = ?`, usedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to touch credential")
	}
	return requireAffected(result)
}

// Deactivate clears is_active so the credential stops matching reads while
// the row survives for audit history. Already-inactive rows report not found.
func (m *MySQLCredentialRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	query := `UPDATE credentials SET is_active = FALSE, updated_at = ?
			  WHERE id = ? AND is_active = TRUE`

	result, err := querier.ExecContext(ctx, query, at, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate credential")
	}
	return requireAffected(result)
}

// Delete permanently removes a credential row.
func (m *MySQLCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete credential")
	}
	return requireAffected(result)
}

func collectMySQLCredentials(rows *sql.Rows) ([]*vaultDomain.Credential, error) {
	var credentials []*vaultDomain.Credential
	for rows.Next() {
		credential, err := scanMySQLCredential(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	return credentials, nil
}

func scanMySQLCredential(scanner rowScanner) (*vaultDomain.Credential, error) {
	var credential vaultDomain.Credential
	var idBytes, dataKeyIDBytes []byte
	var credentialType, algorithm string
	var scopes sql.NullString

	err := scanner.Scan(
		&idBytes,
		&credential.UserID,
		&credential.Platform,
		&credential.PlatformDomain,
		&credentialType,
		&credential.Ciphertext,
		&credential.IV,
		&credential.AuthTag,
		&algorithm,
		&credential.RefreshCiphertext,
		&credential.RefreshIV,
		&credential.RefreshAuthTag,
		&scopes,
		&credential.ExpiresAt,
		&credential.IsActive,
		&dataKeyIDBytes,
		&credential.CreatedAt,
		&credential.UpdatedAt,
		&credential.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := credential.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	if err := credential.DataKeyID.UnmarshalBinary(dataKeyIDBytes); err != nil {
		return nil, err
	}
	credential.Type = vaultDomain.CredentialType(credentialType)
	credential.Algorithm = cryptoDomain.Algorithm(algorithm)
	credential.Scopes = splitScopes(scopes.String)
	return &credential, nil
}
