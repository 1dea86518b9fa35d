package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeroapp/credvault/internal/httputil"
	"github.com/zeroapp/credvault/internal/vault/http/dto"
	vaultUseCase "github.com/zeroapp/credvault/internal/vault/usecase"
)

// AccessLogHandler handles HTTP requests for access log queries.
type AccessLogHandler struct {
	accessLogUseCase vaultUseCase.AccessLogUseCase
	logger           *slog.Logger
}

// NewAccessLogHandler creates a new access log handler with required dependencies.
func NewAccessLogHandler(accessLogUseCase vaultUseCase.AccessLogUseCase, logger *slog.Logger) *AccessLogHandler {
	return &AccessLogHandler{
		accessLogUseCase: accessLogUseCase,
		logger:           logger,
	}
}

// ListHandler returns a user's access history, newest first.
// GET /v1/users/:user_id/access-logs?offset=N&limit=M
func (h *AccessLogHandler) ListHandler(c *gin.Context) {
	userID := c.Param("user_id")

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	page, err := h.accessLogUseCase.ListByUser(c.Request.Context(), userID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAccessLogEntriesToListResponse(page.Entries, page.Total, offset, limit))
}
