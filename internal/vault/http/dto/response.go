package dto

import (
	"time"

	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// CredentialResponse is the decrypted view of a credential returned by Get.
// The refresh token is never part of it.
type CredentialResponse struct {
	ID             string            `json:"id"`
	Platform       string            `json:"platform"`
	PlatformDomain string            `json:"platform_domain"`
	Type           string            `json:"type"`
	Fields         map[string]string `json:"fields"`
	Scopes         []string          `json:"scopes,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
}

// MapCredentialToResponse converts a decrypted credential to its API form.
func MapCredentialToResponse(credential *vaultDomain.DecryptedCredential) CredentialResponse {
	return CredentialResponse{
		ID:             credential.ID.String(),
		Platform:       credential.Platform,
		PlatformDomain: credential.PlatformDomain,
		Type:           string(credential.Type),
		Fields:         credential.Fields,
		Scopes:         credential.Scopes,
		ExpiresAt:      credential.ExpiresAt,
	}
}

// SummaryResponse is the metadata-only view of a credential used by Store and
// List responses.
type SummaryResponse struct {
	ID             string     `json:"id"`
	Platform       string     `json:"platform"`
	PlatformDomain string     `json:"platform_domain"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MapSummaryToResponse converts a credential summary to its API form.
func MapSummaryToResponse(summary *vaultDomain.Summary) SummaryResponse {
	return SummaryResponse{
		ID:             summary.ID.String(),
		Platform:       summary.Platform,
		PlatformDomain: summary.PlatformDomain,
		Type:           string(summary.Type),
		Status:         string(summary.Status),
		ExpiresAt:      summary.ExpiresAt,
		LastUsedAt:     summary.LastUsedAt,
		CreatedAt:      summary.CreatedAt,
	}
}

// ListCredentialsResponse represents a user's credential listing.
type ListCredentialsResponse struct {
	Data []SummaryResponse `json:"data"`
}

// MapSummariesToListResponse converts a slice of summaries to a list response.
func MapSummariesToListResponse(summaries []*vaultDomain.Summary) ListCredentialsResponse {
	data := make([]SummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		data = append(data, MapSummaryToResponse(summary))
	}
	return ListCredentialsResponse{Data: data}
}

// RotateResponse reports the outcome of a data key rotation.
type RotateResponse struct {
	RotatedCredentials int `json:"rotated_credentials"`
}

// AccessLogEntryResponse is one access log entry in API responses.
type AccessLogEntryResponse struct {
	ID           string    `json:"id"`
	CredentialID *string   `json:"credential_id,omitempty"`
	UserID       string    `json:"user_id"`
	Operation    string    `json:"operation"`
	Principal    string    `json:"principal"`
	Reason       string    `json:"reason,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListAccessLogsResponse represents a paginated access log listing.
type ListAccessLogsResponse struct {
	Data   []AccessLogEntryResponse `json:"data"`
	Total  int                      `json:"total"`
	Offset int                      `json:"offset"`
	Limit  int                      `json:"limit"`
}

// MapAccessLogEntriesToListResponse converts a page of access log entries to
// its API form.
func MapAccessLogEntriesToListResponse(entries []*vaultDomain.AccessLogEntry, total, offset, limit int) ListAccessLogsResponse {
	data := make([]AccessLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		item := AccessLogEntryResponse{
			ID:        entry.ID.String(),
			UserID:    entry.UserID,
			Operation: string(entry.Operation),
			Principal: entry.Principal,
			Reason:    entry.Reason,
			Success:   entry.Success,
			Error:     entry.Error,
			CreatedAt: entry.CreatedAt,
		}
		if entry.CredentialID != nil {
			id := entry.CredentialID.String()
			item.CredentialID = &id
		}
		data = append(data, item)
	}
	return ListAccessLogsResponse{Data: data, Total: total, Offset: offset, Limit: limit}
}

// PlatformResponse is the public view of one platform catalog entry. OAuth
// client secrets are configuration, not catalog data, so nothing secret
// appears here.
type PlatformResponse struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name"`
	AuthType      string   `json:"auth_type"`
	BaseURL       string   `json:"base_url,omitempty"`
	DefaultDomain string   `json:"default_domain,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// MapPlatformToResponse converts a platform catalog entry to its API form.
func MapPlatformToResponse(platform *vaultDomain.Platform) PlatformResponse {
	return PlatformResponse{
		Name:          platform.Name,
		DisplayName:   platform.DisplayName,
		AuthType:      string(platform.AuthType),
		BaseURL:       platform.BaseURL,
		DefaultDomain: platform.DefaultDomain,
		Scopes:        platform.Scopes,
		Capabilities:  platform.Capabilities,
	}
}

// ListPlatformsResponse represents the platform catalog.
type ListPlatformsResponse struct {
	Data []PlatformResponse `json:"data"`
}

// MapPlatformsToListResponse converts the platform catalog to its API form.
func MapPlatformsToListResponse(platforms []*vaultDomain.Platform) ListPlatformsResponse {
	data := make([]PlatformResponse, 0, len(platforms))
	for _, platform := range platforms {
		data = append(data, MapPlatformToResponse(platform))
	}
	return ListPlatformsResponse{Data: data}
}

// AuthorizationResponse is the result of initiating an OAuth flow.
type AuthorizationResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}
