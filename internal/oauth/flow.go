package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/zeroapp/credvault/internal/errors"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	"github.com/zeroapp/credvault/internal/vault/usecase"
)

// DefaultStateTTL bounds how long a started authorization may sit before the
// user completes consent.
const DefaultStateTTL = 10 * time.Minute

// Authorization is a started authorization-code flow. The caller redirects
// the user to URL and presents State back on the callback.
type Authorization struct {
	URL   string
	State string
}

// Flow drives the authorization-code flow end to end: Initiate hands out the
// consent URL, Complete exchanges the callback code and stores the resulting
// tokens through the credential manager.
type Flow struct {
	manager     usecase.CredentialManager
	platforms   usecase.PlatformUseCase
	credentials CredentialsSource
	stateTTL    time.Duration

	mu     sync.Mutex
	states map[string]pendingAuthorization
}

type pendingAuthorization struct {
	userID         string
	platform       string
	platformDomain string
	redirectURL    string
	expiresAt      time.Time
}

// NewFlow creates a Flow. A non-positive stateTTL falls back to
// DefaultStateTTL.
func NewFlow(manager usecase.CredentialManager, platforms usecase.PlatformUseCase, credentials CredentialsSource, stateTTL time.Duration) *Flow {
	if stateTTL <= 0 {
		stateTTL = DefaultStateTTL
	}
	return &Flow{
		manager:     manager,
		platforms:   platforms,
		credentials: credentials,
		stateTTL:    stateTTL,
		states:      make(map[string]pendingAuthorization),
	}
}

// Initiate starts an authorization-code flow for userID against the named
// platform. platformDomain may be empty, in which case the platform's default
// domain is used at completion time.
func (f *Flow) Initiate(ctx context.Context, userID, platformName, platformDomain, redirectURL string) (*Authorization, error) {
	if userID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "user id is required")
	}

	platform, err := f.platforms.GetByName(ctx, platformName)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, vaultDomain.ErrPlatformNotConfigured
		}
		return nil, err
	}
	if !platform.SupportsOAuth() {
		return nil, vaultDomain.ErrOAuthNotSupported
	}

	client, ok := f.credentials.Lookup(platform.Name)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "no oauth client registered for platform %q", platform.Name)
	}

	state, err := newState()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate oauth state")
	}

	f.mu.Lock()
	f.evictExpiredLocked(time.Now())
	f.states[state] = pendingAuthorization{
		userID:         userID,
		platform:       platform.Name,
		platformDomain: platformDomain,
		redirectURL:    redirectURL,
		expiresAt:      time.Now().Add(f.stateTTL),
	}
	f.mu.Unlock()

	config := &oauth2.Config{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  platform.AuthorizationURL,
			TokenURL: platform.TokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      platform.Scopes,
	}
	return &Authorization{
		URL:   config.AuthCodeURL(state, oauth2.AccessTypeOffline),
		State: state,
	}, nil
}

// Complete consumes the callback of a started flow: it validates state,
// exchanges the authorization code at the platform's token endpoint and
// stores the resulting tokens. States are single use.
func (f *Flow) Complete(ctx context.Context, state, code string, access usecase.Access) (*vaultDomain.Summary, error) {
	if code == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "authorization code is required")
	}

	pending, ok := f.consumeState(state)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown or expired oauth state")
	}

	platform, err := f.platforms.GetByName(ctx, pending.platform)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, vaultDomain.ErrPlatformNotConfigured
		}
		return nil, err
	}

	client, ok := f.credentials.Lookup(platform.Name)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "no oauth client registered for platform %q", platform.Name)
	}

	config := &oauth2.Config{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  platform.AuthorizationURL,
			TokenURL: platform.TokenURL,
		},
		RedirectURL: pending.redirectURL,
		Scopes:      platform.Scopes,
	}
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(vaultDomain.ErrRefreshFailed, err.Error())
	}

	input := &usecase.StoreInput{
		UserID:         pending.userID,
		Platform:       platform.Name,
		PlatformDomain: pending.platformDomain,
		Type:           vaultDomain.TypeOAuth,
		Fields: map[string]string{
			"access_token": token.AccessToken,
			"token_type":   token.Type(),
		},
		RefreshToken: token.RefreshToken,
		Scopes:       platform.Scopes,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		input.ExpiresAt = &expiry
	}

	return f.manager.Store(ctx, input, access)
}

// consumeState removes and returns a pending authorization. Expired entries
// are treated as absent.
func (f *Flow) consumeState(state string) (pendingAuthorization, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.states[state]
	if !ok {
		return pendingAuthorization{}, false
	}
	delete(f.states, state)
	if time.Now().After(pending.expiresAt) {
		return pendingAuthorization{}, false
	}
	return pending, true
}

func (f *Flow) evictExpiredLocked(now time.Time) {
	for state, pending := range f.states {
		if now.After(pending.expiresAt) {
			delete(f.states, state)
		}
	}
}

func newState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
