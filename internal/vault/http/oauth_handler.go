package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeroapp/credvault/internal/httputil"
	"github.com/zeroapp/credvault/internal/oauth"
	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
	"github.com/zeroapp/credvault/internal/vault/http/dto"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
	customValidation "github.com/zeroapp/credvault/internal/validation"
)

// AuthorizationFlow drives the OAuth authorization-code flow. Satisfied by
// oauth.Flow.
type AuthorizationFlow interface {
	Initiate(ctx context.Context, userID, platformName, platformDomain, redirectURL string) (*oauth.Authorization, error)
	Complete(ctx context.Context, state, code string, access vaultUseCase.Access) (*vaultDomain.Summary, error)
}

// OAuthHandler handles HTTP requests for the OAuth authorization-code flow.
type OAuthHandler struct {
	flow   AuthorizationFlow
	logger *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler with required dependencies.
func NewOAuthHandler(flow AuthorizationFlow, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		flow:   flow,
		logger: logger,
	}
}

// InitiateHandler starts an authorization-code flow for a user and platform.
// POST /v1/users/:user_id/oauth/:platform/initiate
// Returns the consent URL the caller must send the user to.
func (h *OAuthHandler) InitiateHandler(c *gin.Context) {
	userID := c.Param("user_id")
	platform := c.Param("platform")

	var req dto.InitiateOAuthRequest
	// The body is optional; both fields have usable defaults.
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
		if err := req.Validate(); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}
	}

	authorization, err := h.flow.Initiate(c.Request.Context(), userID, platform, req.PlatformDomain, req.RedirectURL)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.AuthorizationResponse{
		AuthorizationURL: authorization.URL,
		State:            authorization.State,
	})
}

// CompleteHandler finishes an authorization-code flow with the callback
// state and code, storing the resulting tokens.
// POST /v1/oauth/callback
// Returns 201 Created with credential metadata.
func (h *OAuthHandler) CompleteHandler(c *gin.Context) {
	access, err := accessFromRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.CompleteOAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	summary, err := h.flow.Complete(c.Request.Context(), req.State, req.Code, access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSummaryToResponse(summary))
}
