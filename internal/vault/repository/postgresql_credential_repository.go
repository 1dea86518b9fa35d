package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/zeroapp/credvault/internal/crypto/domain"
	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// PostgreSQLCredentialRepository implements encrypted credential persistence
// for PostgreSQL.
type PostgreSQLCredentialRepository struct {
	db *sql.DB
}

// NewPostgreSQLCredentialRepository creates a new PostgreSQL credential repository.
func NewPostgreSQLCredentialRepository(db *sql.DB) *PostgreSQLCredentialRepository {
	return &PostgreSQLCredentialRepository{db: db}
}

const pgCredentialColumns = `id, user_id, platform, platform_domain, credential_type,
	ciphertext, iv, auth_tag, algorithm,
	refresh_ciphertext, refresh_iv, refresh_auth_tag,
	scopes, expires_at, is_active, data_key_id,
	created_at, updated_at, last_used_at`

// Upsert inserts the credential or, when a row for the same
// (user_id, platform, platform_domain) already exists, replaces its encrypted
// payload and metadata in place. The existing row keeps its id and created_at.
// The write is a single statement, so a concurrent store for the same triple
// cannot produce a duplicate or a partial overwrite. Returns whether a new row
// was created.
func (p *PostgreSQLCredentialRepository) Upsert(ctx context.Context, credential *vaultDomain.Credential) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO credentials (` + pgCredentialColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			  ON CONFLICT (user_id, platform, platform_domain) DO UPDATE SET
				  credential_type = EXCLUDED.credential_type,
				  ciphertext = EXCLUDED.ciphertext,
				  iv = EXCLUDED.iv,
				  auth_tag = EXCLUDED.auth_tag,
				  algorithm = EXCLUDED.algorithm,
				  refresh_ciphertext = EXCLUDED.refresh_ciphertext,
				  refresh_iv = EXCLUDED.refresh_iv,
				  refresh_auth_tag = EXCLUDED.refresh_auth_tag,
				  scopes = EXCLUDED.scopes,
				  expires_at = EXCLUDED.expires_at,
				  is_active = EXCLUDED.is_active,
				  data_key_id = EXCLUDED.data_key_id,
				  updated_at = EXCLUDED.updated_at
			  RETURNING id, created_at, updated_at`

	// Insert binds the same timestamp to created_at and updated_at, so the two
	// are equal exactly when the row was just created.
	err := querier.QueryRowContext(
		ctx,
		query,
		credential.ID,
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
		credential.DataKeyID,
		credential.CreatedAt,
		credential.UpdatedAt,
		credential.LastUsedAt,
	).Scan(&credential.ID, &credential.CreatedAt, &credential.UpdatedAt)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to upsert credential")
	}

	return credential.CreatedAt.Equal(credential.UpdatedAt), nil
}

// GetActive retrieves the active credential for a (user, platform, domain) triple.
func (p *PostgreSQLCredentialRepository) GetActive(ctx context.Context, userID, platform, platformDomain string) (*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgCredentialColumns + ` FROM credentials
			  WHERE user_id = $1 AND platform = $2 AND platform_domain = $3 AND is_active = TRUE`

	row := querier.QueryRowContext(ctx, query, userID, platform, platformDomain)
	return scanPgCredential(row)
}

// ListByUser retrieves all of a user's credentials ordered by platform then domain.
func (p *PostgreSQLCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgCredentialColumns + ` FROM credentials
			  WHERE user_id = $1
			  ORDER BY platform, platform_domain`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close()

	var credentials []*vaultDomain.Credential
	for rows.Next() {
		credential, err := scanPgCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	return credentials, nil
}

// ListByDataKey retrieves every credential encrypted under the given data key.
// Used by rotation to find the full set of rows that must be re-encrypted.
func (p *PostgreSQLCredentialRepository) ListByDataKey(ctx context.Context, dataKeyID uuid.UUID) ([]*vaultDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgCredentialColumns + ` FROM credentials WHERE data_key_id = $1`

	rows, err := querier.QueryContext(ctx, query, dataKeyID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials by data key")
	}
	defer rows.Close()

	var credentials []*vaultDomain.Credential
	for rows.Next() {
		credential, err := scanPgCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials by data key")
	}
	return credentials, nil
}

// UpdateEncrypted replaces a credential's encrypted payloads and key binding.
// Used after an OAuth refresh and during data key rotation.
func (p *PostgreSQLCredentialRepository) UpdateEncrypted(ctx context.Context, credential *vaultDomain.Credential) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET
				  ciphertext = $1, iv = $2, auth_tag = $3, algorithm = $4,
				  refresh_ciphertext = $5, refresh_iv = $6, refresh_auth_tag = $7,
				  expires_at = $8, data_key_id = $9, updated_at = $10
			  WHERE id = $11`

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
		credential.DataKeyID,
		credential.UpdatedAt,
		credential.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}
	return requireAffected(result)
}

// TouchLastUsed records a successful read without touching updated_at.
func (p *PostgreSQLCredentialRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET last_used_at = $1 WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, usedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to touch credential")
	}
	return requireAffected(result)
}

// Deactivate clears is_active so the credential stops matching reads while
// the row survives for audit history. Already-inactive rows report not found.
func (p *PostgreSQLCredentialRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET is_active = FALSE, updated_at = $1
			  WHERE id = $2 AND is_active = TRUE`

	result, err := querier.ExecContext(ctx, query, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate credential")
	}
	return requireAffected(result)
}

// Delete permanently removes a credential row. The encrypted payload is not
// recoverable afterwards.
func (p *PostgreSQLCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM credentials WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete credential")
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPgCredential(row *sql.Row) (*vaultDomain.Credential, error) {
	credential, err := scanCredentialFields(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get credential")
	}
	return credential, nil
}

func scanPgCredentialRow(rows *sql.Rows) (*vaultDomain.Credential, error) {
	credential, err := scanCredentialFields(rows)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan credential")
	}
	return credential, nil
}

func scanCredentialFields(scanner rowScanner) (*vaultDomain.Credential, error) {
	var credential vaultDomain.Credential
	var credentialType, algorithm string
	var scopes sql.NullString

	err := scanner.Scan(
		&credential.ID,
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
		&credential.DataKeyID,
		&credential.CreatedAt,
		&credential.UpdatedAt,
		&credential.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	credential.Type = vaultDomain.CredentialType(credentialType)
	credential.Algorithm = cryptoDomain.Algorithm(algorithm)
	credential.Scopes = splitScopes(scopes.String)
	return &credential, nil
}

// joinScopes flattens the scope list into a single space-separated column,
// the same form OAuth servers use on the wire.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	return strings.Split(scopes, " ")
}
