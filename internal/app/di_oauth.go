package app

import (
	"fmt"

	"github.com/zeroapp/credvault/internal/oauth"
	vaultHTTP "github.com/zeroapp/credvault/internal/vault/http"
)

// OAuthCredentials returns the OAuth client credentials parsed from configuration.
func (c *Container) OAuthCredentials() (oauth.StaticCredentials, error) {
	var err error
	c.oauthCredentialsInit.Do(func() {
		c.oauthCredentials, err = oauth.ParseStaticCredentials(c.config.OAuthClients)
		if err != nil {
			c.initErrors["oauthCredentials"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["oauthCredentials"]; exists {
		return nil, storedErr
	}
	return c.oauthCredentials, nil
}

// Refresher returns the OAuth token refresher.
func (c *Container) Refresher() (*oauth.Refresher, error) {
	var err error
	c.refresherInit.Do(func() {
		c.refresher, err = c.initRefresher()
		if err != nil {
			c.initErrors["refresher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["refresher"]; exists {
		return nil, storedErr
	}
	return c.refresher, nil
}

// OAuthFlow returns the OAuth authorization flow.
func (c *Container) OAuthFlow() (*oauth.Flow, error) {
	var err error
	c.oauthFlowInit.Do(func() {
		c.oauthFlow, err = c.initOAuthFlow()
		if err != nil {
			c.initErrors["oauthFlow"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["oauthFlow"]; exists {
		return nil, storedErr
	}
	return c.oauthFlow, nil
}

// OAuthHandler returns the HTTP handler for the OAuth authorization flow.
func (c *Container) OAuthHandler() (*vaultHTTP.OAuthHandler, error) {
	var err error
	c.oauthHandlerInit.Do(func() {
		c.oauthHandler, err = c.initOAuthHandler()
		if err != nil {
			c.initErrors["oauthHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["oauthHandler"]; exists {
		return nil, storedErr
	}
	return c.oauthHandler, nil
}

// initRefresher creates the token refresher from the configured client credentials.
func (c *Container) initRefresher() (*oauth.Refresher, error) {
	credentials, err := c.OAuthCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to parse oauth client credentials: %w", err)
	}
	return oauth.NewRefresher(credentials), nil
}

// initOAuthFlow creates the authorization flow with all its dependencies.
func (c *Container) initOAuthFlow() (*oauth.Flow, error) {
	manager, err := c.CredentialManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential manager for oauth flow: %w", err)
	}

	platformUseCase, err := c.PlatformUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform use case for oauth flow: %w", err)
	}

	credentials, err := c.OAuthCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to parse oauth client credentials: %w", err)
	}

	return oauth.NewFlow(manager, platformUseCase, credentials, c.config.OAuthStateTTL), nil
}

// initOAuthHandler creates the OAuth HTTP handler.
func (c *Container) initOAuthHandler() (*vaultHTTP.OAuthHandler, error) {
	flow, err := c.OAuthFlow()
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth flow for oauth handler: %w", err)
	}
	return vaultHTTP.NewOAuthHandler(flow, c.Logger()), nil
}
