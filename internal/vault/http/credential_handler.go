// Package http provides HTTP handlers for vault operations. Every handler
// resolves the accessing principal from the X-Principal header and passes it
// through to the use case layer, where it lands in the access log.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeroapp/credvault/internal/httputil"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	"github.com/zeroapp/credvault/internal/vault/http/dto"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
	customValidation "github.com/zeroapp/credvault/internal/validation"
)

const (
	principalHeader = "X-Principal"
	reasonHeader    = "X-Access-Reason"
)

// accessFromRequest builds the audit identity for the request. The principal
// is mandatory: an access log entry without one is useless.
func accessFromRequest(c *gin.Context) (vaultUseCase.Access, error) {
	principal := c.GetHeader(principalHeader)
	if principal == "" {
		return vaultUseCase.Access{}, fmt.Errorf("%s header is required", principalHeader)
	}
	return vaultUseCase.Access{
		Principal: principal,
		Reason:    c.GetHeader(reasonHeader),
	}, nil
}

// CredentialHandler handles HTTP requests for credential operations.
type CredentialHandler struct {
	manager vaultUseCase.CredentialManager
	logger  *slog.Logger
}

// NewCredentialHandler creates a new credential handler with required dependencies.
func NewCredentialHandler(manager vaultUseCase.CredentialManager, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		manager: manager,
		logger:  logger,
	}
}

// StoreHandler encrypts and stores a credential for a user.
// PUT /v1/users/:user_id/credentials/:platform
// Returns 201 Created with credential metadata; the secret material is never echoed back.
func (h *CredentialHandler) StoreHandler(c *gin.Context) {
	userID := c.Param("user_id")
	platform := c.Param("platform")

	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.StoreCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &vaultUseCase.StoreInput{
		UserID:         userID,
		Platform:       platform,
		PlatformDomain: req.PlatformDomain,
		Type:           vaultDomain.CredentialType(req.Type),
		Fields:         req.Fields,
		RefreshToken:   req.RefreshToken,
		Scopes:         req.Scopes,
		ExpiresAt:      req.ExpiresAt,
	}

	summary, err := h.manager.Store(c.Request.Context(), input, access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSummaryToResponse(summary))
}

// GetHandler decrypts and returns a credential.
// GET /v1/users/:user_id/credentials/:platform?platform_domain=D
// Expired OAuth credentials are refreshed transparently before the response.
func (h *CredentialHandler) GetHandler(c *gin.Context) {
	userID := c.Param("user_id")
	platform := c.Param("platform")
	platformDomain := c.Query("platform_domain")

	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	credential, err := h.manager.Get(c.Request.Context(), userID, platform, platformDomain, access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialToResponse(credential))
}

// DeleteHandler removes a credential.
// DELETE /v1/users/:user_id/credentials/:platform?platform_domain=D&mode=M
// The default mode destroys the row; mode=deactivate retires it in place so
// the audit trail keeps a credential to point at. Returns 204 No Content.
func (h *CredentialHandler) DeleteHandler(c *gin.Context) {
	userID := c.Param("user_id")
	platform := c.Param("platform")
	platformDomain := c.Query("platform_domain")

	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if c.Query("mode") == "deactivate" {
		err = h.manager.Deactivate(c.Request.Context(), userID, platform, platformDomain, access)
	} else {
		err = h.manager.Delete(c.Request.Context(), userID, platform, platformDomain, access)
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListHandler returns metadata for all of a user's credentials.
// GET /v1/users/:user_id/credentials
func (h *CredentialHandler) ListHandler(c *gin.Context) {
	userID := c.Param("user_id")

	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	summaries, err := h.manager.List(c.Request.Context(), userID, access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSummariesToListResponse(summaries))
}

// RotateHandler mints a new data key for the user and re-encrypts every
// credential under it.
// POST /v1/users/:user_id/rotate-key
func (h *CredentialHandler) RotateHandler(c *gin.Context) {
	userID := c.Param("user_id")

	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	count, err := h.manager.RotateDataKey(c.Request.Context(), userID, access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RotateResponse{RotatedCredentials: count})
}
