package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeroapp/credvault/internal/httputil"
	"github.com/zeroapp/credvault/internal/vault/http/dto"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// PlatformHandler handles HTTP requests for the platform catalog.
type PlatformHandler struct {
	platformUseCase vaultUseCase.PlatformUseCase
	logger          *slog.Logger
}

// NewPlatformHandler creates a new platform handler with required dependencies.
func NewPlatformHandler(platformUseCase vaultUseCase.PlatformUseCase, logger *slog.Logger) *PlatformHandler {
	return &PlatformHandler{
		platformUseCase: platformUseCase,
		logger:          logger,
	}
}

// ListHandler returns the full platform catalog.
// GET /v1/platforms
func (h *PlatformHandler) ListHandler(c *gin.Context) {
	platforms, err := h.platformUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPlatformsToListResponse(platforms))
}

// GetHandler returns one platform catalog entry by name.
// GET /v1/platforms/:platform
func (h *PlatformHandler) GetHandler(c *gin.Context) {
	platform, err := h.platformUseCase.GetByName(c.Request.Context(), c.Param("platform"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPlatformToResponse(platform))
}
