// Package oauth implements the OAuth side of the vault: the authorization-code
// flow that turns a user's consent into a stored credential, and the refresher
// the credential manager uses to renew expired access tokens.
//
// Token plumbing is delegated to golang.org/x/oauth2; this package only maps
// between the vault's platform catalog and oauth2.Config.
package oauth

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	"github.com/zeroapp/credvault/internal/vault/usecase"
)

// ClientCredentials is the OAuth client registered with one platform.
type ClientCredentials struct {
	ID     string
	Secret string
}

// CredentialsSource resolves the OAuth client registered for a platform.
type CredentialsSource interface {
	Lookup(platform string) (ClientCredentials, bool)
}

// StaticCredentials is a CredentialsSource backed by a fixed map, loaded from
// configuration at startup.
type StaticCredentials map[string]ClientCredentials

// Lookup implements CredentialsSource.
func (s StaticCredentials) Lookup(platform string) (ClientCredentials, bool) {
	credentials, ok := s[platform]
	return credentials, ok
}

// ParseStaticCredentials parses the OAUTH_CLIENTS configuration format:
// comma-separated "platform=client_id:client_secret" entries. Malformed
// entries fail the whole parse so a typo cannot silently drop a platform.
func ParseStaticCredentials(raw string) (StaticCredentials, error) {
	credentials := make(StaticCredentials)
	if raw == "" {
		return credentials, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		platform, client, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "malformed oauth client entry %q", entry)
		}
		id, secret, ok := strings.Cut(client, ":")
		if !ok || platform == "" || id == "" {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "malformed oauth client entry %q", entry)
		}
		credentials[platform] = ClientCredentials{ID: id, Secret: secret}
	}
	return credentials, nil
}

// Refresher exchanges refresh tokens at platform token endpoints. Implements
// usecase.TokenRefresher.
type Refresher struct {
	credentials CredentialsSource
}

// NewRefresher creates a refresher using the given OAuth client registrations.
func NewRefresher(credentials CredentialsSource) *Refresher {
	return &Refresher{credentials: credentials}
}

// Refresh exchanges refreshToken for a fresh access token at the platform's
// token endpoint. RefreshToken in the result is set only when the provider
// rotated it.
func (r *Refresher) Refresh(ctx context.Context, platform *vaultDomain.Platform, refreshToken string, scopes []string) (*usecase.RefreshedToken, error) {
	if !platform.SupportsOAuth() {
		return nil, vaultDomain.ErrOAuthNotSupported
	}

	config, err := r.config(platform, scopes, "")
	if err != nil {
		return nil, err
	}

	token, err := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, apperrors.Wrap(vaultDomain.ErrRefreshFailed, err.Error())
	}

	refreshed := &usecase.RefreshedToken{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		refreshed.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}

// config builds the oauth2.Config for a platform, failing when no OAuth
// client is registered for it.
func (r *Refresher) config(platform *vaultDomain.Platform, scopes []string, redirectURL string) (*oauth2.Config, error) {
	client, ok := r.credentials.Lookup(platform.Name)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "no oauth client registered for platform %q", platform.Name)
	}
	if len(scopes) == 0 {
		scopes = platform.Scopes
	}
	return &oauth2.Config{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  platform.AuthorizationURL,
			TokenURL: platform.TokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}, nil
}
