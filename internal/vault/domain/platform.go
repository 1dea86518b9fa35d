package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform is static configuration for one integrated third-party platform
// (learning platforms, sports platforms, shops). Consumed read-only by the
// extraction workers and the OAuth flow; seeded by migration.
type Platform struct {
	ID          uuid.UUID
	Name        string // Unique machine name (e.g., "canvas")
	DisplayName string
	AuthType    CredentialType // How users connect: api_token, oauth, or session_cookie

	// BaseURL is the platform's API root used by extraction workers.
	BaseURL string
	// DefaultDomain is the platform domain assumed when a caller stores or
	// fetches a credential without specifying one (e.g., "canvas.instructure.com").
	DefaultDomain string

	// OAuth endpoints; empty unless AuthType is oauth.
	AuthorizationURL string
	TokenURL         string
	Scopes           []string

	// Capabilities lists what the extraction workers may do against this
	// platform (e.g., "assignments", "grades", "schedule").
	Capabilities []string

	CreatedAt time.Time
}

// SupportsOAuth reports whether the platform is connected through an OAuth
// authorization-code flow.
func (p *Platform) SupportsOAuth() bool {
	return p.AuthType == TypeOAuth && p.AuthorizationURL != "" && p.TokenURL != ""
}
