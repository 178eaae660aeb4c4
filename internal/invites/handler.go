package invites

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/organizations"
	"github.com/eventmarket/backend/pkg/response"
)

// Handler handles team invite HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an invites handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// SendInviteRequest is the body for POST /organizations/:type/:id/invites.
type SendInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AcceptInviteRequest is the body for POST /invites/accept.
type AcceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}

// InviteView is an invite without its token hash.
type InviteView struct {
	ID         uuid.UUID      `json:"id"`
	OrgType    models.OrgType `json:"org_type"`
	OrgID      uuid.UUID      `json:"org_id"`
	Email      string         `json:"email"`
	Role       models.Role    `json:"role"`
	ExpiresAt  time.Time      `json:"expires_at"`
	AcceptedAt *time.Time     `json:"accepted_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func viewOf(inv *models.OrgInvite) InviteView {
	return InviteView{
		ID:         inv.ID,
		OrgType:    inv.OrgType,
		OrgID:      inv.OrgID,
		Email:      inv.Email,
		Role:       inv.Role,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
		CreatedAt:  inv.CreatedAt,
	}
}

// Send handles POST /organizations/:type/:id/invites.
func (h *Handler) Send(c *gin.Context) {
	t, ok := organizations.OrgType(c)
	if !ok {
		return
	}
	orgID, ok := organizations.OrgID(c)
	if !ok {
		return
	}
	var body SendInviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "a valid email and role are required")
		return
	}
	inv, err := h.svc.Send(c.Request.Context(), middleware.IdentityFrom(c), t, orgID,
		SendInput{Email: body.Email, Role: models.Role(body.Role)})
	if err != nil {
		h.fail(c, err, "Failed to send invitation")
		return
	}
	response.Created(c, "Invitation sent to "+inv.Email, viewOf(inv))
}

// List handles GET /organizations/:type/:id/invites.
func (h *Handler) List(c *gin.Context) {
	t, ok := organizations.OrgType(c)
	if !ok {
		return
	}
	orgID, ok := organizations.OrgID(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c), t, orgID)
	if err != nil {
		h.fail(c, err, "Failed to load invitations")
		return
	}
	views := make([]InviteView, 0, len(list))
	for _, inv := range list {
		views = append(views, viewOf(inv))
	}
	response.OK(c, "", views)
}

// Accept handles POST /invites/accept.
func (h *Handler) Accept(c *gin.Context) {
	var body AcceptInviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "token required")
		return
	}
	res, err := h.svc.Accept(c.Request.Context(), middleware.IdentityFrom(c), body.Token)
	if err != nil {
		h.fail(c, err, "Failed to accept invitation")
		return
	}
	response.OK(c, "Invitation accepted", gin.H{
		"invite":  viewOf(res.Invite),
		"profile": res.Profile,
	})
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	h.logger.Warn(fallback, zap.Error(err), zap.String("request_id", c.GetString(middleware.ContextRequestID)))
	response.Error(c, err, fallback)
}
