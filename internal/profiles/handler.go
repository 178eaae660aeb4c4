package profiles

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
	"github.com/eventmarket/backend/pkg/response"
)

// OrganizationGetter loads an organization by type and id.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error)
}

// MeView is the acting profile with its organization, if any.
type MeView struct {
	Profile      *models.Profile      `json:"profile"`
	Organization *models.Organization `json:"organization,omitempty"`
}

// Handler serves the acting user's profile.
type Handler struct {
	guard  *membership.Guard
	orgs   OrganizationGetter
	logger *zap.Logger
}

// NewHandler creates a profiles handler.
func NewHandler(guard *membership.Guard, orgs OrganizationGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{guard: guard, orgs: orgs, logger: logger}
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	view, err := h.load(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		h.logger.Debug("load profile failed", zap.Error(err))
		response.Error(c, err, "Failed to load profile")
		return
	}
	response.OK(c, "", view)
}

func (h *Handler) load(ctx context.Context, id membership.Identity) (*MeView, error) {
	p, err := h.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &MeView{Profile: p}
	for _, t := range []models.OrgType{models.OrgTypeAgency, models.OrgTypeSupplier} {
		orgID := p.OrgID(t)
		if orgID == nil {
			continue
		}
		org, err := h.orgs.GetOrganization(ctx, t, *orgID)
		if errors.Is(err, database.ErrNotFound) {
			h.logger.Warn("profile references missing organization",
				zap.String("user_id", p.UserID), zap.String("org_id", orgID.String()))
			break
		}
		if err != nil {
			return nil, err
		}
		view.Organization = org
	}
	return view, nil
}
