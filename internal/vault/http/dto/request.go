// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/zeroapp/credvault/internal/validation"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// StoreCredentialRequest contains the parameters for storing a credential.
// The user and platform come from the URL; the secret material comes from the
// body and is never echoed back.
type StoreCredentialRequest struct {
	Type           string            `json:"type" binding:"required"`
	PlatformDomain string            `json:"platform_domain"`
	Fields         map[string]string `json:"fields" binding:"required"`
	RefreshToken   string            `json:"refresh_token"`
	Scopes         []string          `json:"scopes"`
	ExpiresAt      *time.Time        `json:"expires_at"`
}

// Validate checks if the store credential request is valid.
func (r *StoreCredentialRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type,
			validation.Required,
			validation.In(
				string(vaultDomain.TypeAPIToken),
				string(vaultDomain.TypeOAuth),
				string(vaultDomain.TypeSessionCookie),
			),
		),
		validation.Field(&r.PlatformDomain, customValidation.Hostname),
		validation.Field(&r.Fields,
			validation.Required,
			validation.Length(1, 0),
		),
	)
}

// InitiateOAuthRequest contains the parameters for starting an
// authorization-code flow.
type InitiateOAuthRequest struct {
	PlatformDomain string `json:"platform_domain"`
	RedirectURL    string `json:"redirect_url"`
}

// Validate checks if the initiate OAuth request is valid.
func (r *InitiateOAuthRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PlatformDomain, customValidation.Hostname),
		validation.Field(&r.RedirectURL, customValidation.NoWhitespace),
	)
}

// CompleteOAuthRequest contains the callback parameters of an
// authorization-code flow.
type CompleteOAuthRequest struct {
	State string `json:"state" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// Validate checks if the complete OAuth request is valid.
func (r *CompleteOAuthRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.State, validation.Required),
		validation.Field(&r.Code, validation.Required),
	)
}
