package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// MySQLPlatformRepository implements platform configuration persistence for MySQL.
type MySQLPlatformRepository struct {
	db *sql.DB
}

// NewMySQLPlatformRepository creates a new MySQL platform repository.
func NewMySQLPlatformRepository(db *sql.DB) *MySQLPlatformRepository {
	return &MySQLPlatformRepository{db: db}
}

const mysqlPlatformColumns = `id, name, display_name, auth_type, base_url, default_domain,
	authorization_url, token_url, scopes, capabilities, created_at`

// Upsert inserts the platform or updates the existing row with the same name.
func (m *MySQLPlatformRepository) Upsert(ctx context.Context, platform *vaultDomain.Platform) error {
	querier := database.GetTx(ctx, m.db)

	capabilities, err := json.Marshal(platform.Capabilities)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal platform capabilities")
	}

	id, err := platform.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal platform id")
	}

	query := `INSERT INTO platforms (` + mysqlPlatformColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
				  display_name = VALUES(display_name),
				  auth_type = VALUES(auth_type),
				  base_url = VALUES(base_url),
				  default_domain = VALUES(default_domain),
				  authorization_url = VALUES(authorization_url),
				  token_url = VALUES(token_url),
				  scopes = VALUES(scopes),
				  capabilities = VALUES(capabilities)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		platform.Name,
		platform.DisplayName,
		string(platform.AuthType),
		platform.BaseURL,
		platform.DefaultDomain,
		platform.AuthorizationURL,
		platform.TokenURL,
		joinScopes(platform.Scopes),
		capabilities,
		platform.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert platform")
	}
	return nil
}

// GetByName retrieves a platform by its unique machine name.
func (m *MySQLPlatformRepository) GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlPlatformColumns + ` FROM platforms WHERE name = ?`

	platform, err := scanMySQLPlatform(querier.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get platform")
	}
	return platform, nil
}

// List retrieves all configured platforms ordered by name.
func (m *MySQLPlatformRepository) List(ctx context.Context) ([]*vaultDomain.Platform, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlPlatformColumns + ` FROM platforms ORDER BY name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list platforms")
	}
	defer rows.Close()

	var platforms []*vaultDomain.Platform
	for rows.Next() {
		platform, err := scanMySQLPlatform(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan platform")
		}
		platforms = append(platforms, platform)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list platforms")
	}
	return platforms, nil
}

func scanMySQLPlatform(scanner rowScanner) (*vaultDomain.Platform, error) {
	var platform vaultDomain.Platform
	var idBytes []byte
	var authType, scopes string
	var capabilities []byte

	err := scanner.Scan(
		&idBytes,
		&platform.Name,
		&platform.DisplayName,
		&authType,
		&platform.BaseURL,
		&platform.DefaultDomain,
		&platform.AuthorizationURL,
		&platform.TokenURL,
		&scopes,
		&capabilities,
		&platform.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := platform.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	platform.AuthType = vaultDomain.CredentialType(authType)
	platform.Scopes = splitScopes(scopes)
	if err := json.Unmarshal(capabilities, &platform.Capabilities); err != nil {
		return nil, err
	}
	return &platform, nil
}
