package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// seedPlatform is the JSON shape of one catalog entry in a seed file.
type seedPlatform struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"display_name"`
	AuthType         string   `json:"auth_type"`
	BaseURL          string   `json:"base_url"`
	DefaultDomain    string   `json:"default_domain"`
	AuthorizationURL string   `json:"authorization_url"`
	TokenURL         string   `json:"token_url"`
	Scopes           []string `json:"scopes"`
	Capabilities     []string `json:"capabilities"`
}

// RunSeedPlatforms upserts the platform catalog. When file is empty the
// built-in default catalog is used; otherwise the file must contain a JSON
// array of platform entries. Safe to run repeatedly.
//
// Requirements: Database must be migrated and accessible.
func RunSeedPlatforms(
	ctx context.Context,
	platformUseCase vaultUseCase.PlatformUseCase,
	logger *slog.Logger,
	out io.Writer,
	file string,
) error {
	entries := defaultPlatformCatalog()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		entries = nil
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse seed file: %w", err)
		}
	}

	platforms := make([]*vaultDomain.Platform, 0, len(entries))
	for _, entry := range entries {
		platform, err := entry.toDomain()
		if err != nil {
			return err
		}
		platforms = append(platforms, platform)
	}

	logger.Info("seeding platform catalog", slog.Int("platforms", len(platforms)))

	if err := platformUseCase.Seed(ctx, platforms); err != nil {
		return fmt.Errorf("failed to seed platforms: %w", err)
	}

	for _, platform := range platforms {
		fmt.Fprintf(out, "Seeded platform %s (%s)\n", platform.Name, platform.AuthType)
	}

	return nil
}

// toDomain validates one seed entry and converts it to the domain model.
// Existing rows are matched by name, so a fresh UUID here only applies to
// inserts.
func (s seedPlatform) toDomain() (*vaultDomain.Platform, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("platform entry is missing a name")
	}

	authType := vaultDomain.CredentialType(s.AuthType)
	if !authType.Valid() {
		return nil, fmt.Errorf("platform %s has invalid auth_type: %q", s.Name, s.AuthType)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate platform id: %w", err)
	}

	return &vaultDomain.Platform{
		ID:               id,
		Name:             s.Name,
		DisplayName:      s.DisplayName,
		AuthType:         authType,
		BaseURL:          s.BaseURL,
		DefaultDomain:    s.DefaultDomain,
		AuthorizationURL: s.AuthorizationURL,
		TokenURL:         s.TokenURL,
		Scopes:           s.Scopes,
		Capabilities:     s.Capabilities,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// defaultPlatformCatalog is the catalog shipped with the vault. Deployments
// with additional platforms pass their own seed file.
func defaultPlatformCatalog() []seedPlatform {
	return []seedPlatform{
		{
			Name:             "canvas",
			DisplayName:      "Canvas LMS",
			AuthType:         "oauth",
			BaseURL:          "https://canvas.instructure.com/api/v1",
			DefaultDomain:    "canvas.instructure.com",
			AuthorizationURL: "https://canvas.instructure.com/login/oauth2/auth",
			TokenURL:         "https://canvas.instructure.com/login/oauth2/token",
			Scopes:           []string{"url:GET|/api/v1/courses", "url:GET|/api/v1/users/self/upcoming_events"},
			Capabilities:     []string{"assignments", "grades", "schedule"},
		},
		{
			Name:          "sportadmin",
			DisplayName:   "SportAdmin",
			AuthType:      "session_cookie",
			BaseURL:       "https://www.sportadmin.se",
			DefaultDomain: "www.sportadmin.se",
			Capabilities:  []string{"schedule", "attendance"},
		},
		{
			Name:          "shopify",
			DisplayName:   "Shopify",
			AuthType:      "api_token",
			BaseURL:       "https://admin.shopify.com/api",
			DefaultDomain: "myshopify.com",
			Capabilities:  []string{"orders"},
		},
	}
}
