// Package emaillogs exposes notification delivery logs to platform admins.
package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Lister lists recent email logs.
type Lister interface {
	ListRecentEmailLogs(ctx context.Context, limit int) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	guard  *membership.Guard
	logs   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(guard *membership.Guard, logs Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{guard: guard, logs: logs, logger: logger}
}

// List handles GET /admin/email-logs?limit=N.
func (h *Handler) List(c *gin.Context) {
	p, err := h.guard.ResolveActingProfile(c.Request.Context(), middleware.IdentityFrom(c))
	if err == nil {
		err = membership.RequirePlatformAdmin(p)
	}
	if err != nil {
		response.Error(c, err, "Failed to load email logs")
		return
	}

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}
	logs, err := h.logs.ListRecentEmailLogs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "Failed to load email logs")
		return
	}
	response.OK(c, "", logs)
}
