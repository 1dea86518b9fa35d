package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zeroapp/credvault/internal/database"
	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// PostgreSQLPlatformRepository implements platform configuration persistence
// for PostgreSQL.
type PostgreSQLPlatformRepository struct {
	db *sql.DB
}

// NewPostgreSQLPlatformRepository creates a new PostgreSQL platform repository.
func NewPostgreSQLPlatformRepository(db *sql.DB) *PostgreSQLPlatformRepository {
	return &PostgreSQLPlatformRepository{db: db}
}

const pgPlatformColumns = `id, name, display_name, auth_type, base_url, default_domain,
	authorization_url, token_url, scopes, capabilities, created_at`

// Upsert inserts the platform or updates the existing row with the same name.
// Used by the seeding command, which must be safe to run repeatedly.
func (p *PostgreSQLPlatformRepository) Upsert(ctx context.Context, platform *vaultDomain.Platform) error {
	querier := database.GetTx(ctx, p.db)

	capabilities, err := json.Marshal(platform.Capabilities)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal platform capabilities")
	}

	query := `INSERT INTO platforms (` + pgPlatformColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (name) DO UPDATE SET
				  display_name = EXCLUDED.display_name,
				  auth_type = EXCLUDED.auth_type,
				  base_url = EXCLUDED.base_url,
				  default_domain = EXCLUDED.default_domain,
				  authorization_url = EXCLUDED.authorization_url,
				  token_url = EXCLUDED.token_url,
				  scopes = EXCLUDED.scopes,
				  capabilities = EXCLUDED.capabilities`

	_, err = querier.ExecContext(
		ctx,
		query,
		platform.ID,
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
func (p *PostgreSQLPlatformRepository) GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgPlatformColumns + ` FROM platforms WHERE name = $1`

	return scanPlatform(querier.QueryRowContext(ctx, query, name))
}

// List retrieves all configured platforms ordered by name.
func (p *PostgreSQLPlatformRepository) List(ctx context.Context) ([]*vaultDomain.Platform, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgPlatformColumns + ` FROM platforms ORDER BY name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list platforms")
	}
	defer rows.Close()

	var platforms []*vaultDomain.Platform
	for rows.Next() {
		platform, err := scanPlatformFields(rows)
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

func scanPlatform(row *sql.Row) (*vaultDomain.Platform, error) {
	platform, err := scanPlatformFields(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get platform")
	}
	return platform, nil
}

func scanPlatformFields(scanner rowScanner) (*vaultDomain.Platform, error) {
	var platform vaultDomain.Platform
	var authType, scopes string
	var capabilities []byte

	err := scanner.Scan(
		&platform.ID,
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

	platform.AuthType = vaultDomain.CredentialType(authType)
	platform.Scopes = splitScopes(scopes)
	if err := json.Unmarshal(capabilities, &platform.Capabilities); err != nil {
		return nil, err
	}
	return &platform, nil
}
