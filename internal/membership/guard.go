// Package membership resolves the acting profile and answers authorization
// questions about organizations and RFQs.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// ProfileStore persists profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	// CreateProfile inserts p. A conflicting user id or email is ErrDuplicate.
	CreateProfile(ctx context.Context, p *models.Profile) error
}

// Guard loads acting profiles.
type Guard struct {
	profiles ProfileStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewGuard creates a guard backed by profiles.
func NewGuard(profiles ProfileStore, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{profiles: profiles, now: time.Now, logger: logger}
}

// ResolveActingProfile returns the caller's profile.
func (g *Guard) ResolveActingProfile(ctx context.Context, id Identity) (*models.Profile, error) {
	if id.UserID == "" {
		return nil, apperr.NotAuthenticated()
	}
	p, err := g.profiles.GetProfile(ctx, id.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("User profile not found")
	}
	if err != nil {
		return nil, apperr.Internal("load profile", err)
	}
	return p, nil
}

// EnsureActingProfile returns the caller's profile, creating an unaffiliated
// one on first use.
func (g *Guard) EnsureActingProfile(ctx context.Context, id Identity) (*models.Profile, error) {
	p, err := g.ResolveActingProfile(ctx, id)
	if !apperr.Is(err, apperr.KindNotFound) {
		return p, err
	}
	if id.Email == "" {
		return nil, apperr.InvalidInput("An email address is required to create a profile")
	}

	now := g.now().UTC()
	p = &models.Profile{
		UserID:    id.UserID,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Email:     id.Email,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = g.profiles.CreateProfile(ctx, p)
	if errors.Is(err, database.ErrDuplicate) {
		// Lost a race with a concurrent request for the same user, or the
		// email belongs to someone else.
		existing, getErr := g.profiles.GetProfile(ctx, id.UserID)
		if getErr == nil {
			return existing, nil
		}
		return nil, apperr.New(apperr.KindEmailAlreadyRegistered, fmt.Sprintf("User with email %s already exists", id.Email))
	}
	if err != nil {
		return nil, apperr.Internal("create profile", err)
	}
	g.logger.Info("Profile created", zap.String("user_id", p.UserID))
	return p, nil
}

// RequireOrgMembership allows profiles that belong to the given organization.
func RequireOrgMembership(p *models.Profile, t models.OrgType, orgID uuid.UUID) error {
	if p == nil {
		return apperr.NotAuthenticated()
	}
	if id := p.OrgID(t); id != nil && *id == orgID {
		return nil
	}
	return apperr.Forbidden("You do not have access to this " + string(t))
}

// RequireOrgAdmin allows admins of the given organization.
func RequireOrgAdmin(p *models.Profile, t models.OrgType, orgID uuid.UUID) error {
	if err := RequireOrgMembership(p, t, orgID); err != nil {
		return err
	}
	if p.Role != models.AdminRole(t) {
		return apperr.Forbidden("Only " + string(t) + " admins can perform this action")
	}
	return nil
}

// RequireRfqRole allows profiles whose role is one of allowed.
func RequireRfqRole(p *models.Profile, allowed ...models.Role) error {
	if p == nil {
		return apperr.NotAuthenticated()
	}
	for _, r := range allowed {
		if p.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("Your role is not allowed to perform this action")
}

// RequireNoExistingOrganization allows profiles with no organization. It is
// the only check used by onboarding and invite acceptance.
func RequireNoExistingOrganization(p *models.Profile) error {
	if p == nil {
		return apperr.NotAuthenticated()
	}
	if p.HasOrganization() {
		return apperr.AlreadyMember()
	}
	return nil
}

// RequirePlatformAdmin allows platform administrators.
func RequirePlatformAdmin(p *models.Profile) error {
	if p == nil {
		return apperr.NotAuthenticated()
	}
	if p.Role != models.RoleAdmin {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

// AgencyRoles are the roles allowed to manage RFQs.
var AgencyRoles = []models.Role{models.RoleAgencyAdmin, models.RoleAgencyMember}

// SupplierRoles are the roles of supplier members.
var SupplierRoles = []models.Role{models.RoleSupplierAdmin, models.RoleSupplierMember}

// RequireRfqOwner allows agency users of the agency that owns the RFQ.
func RequireRfqOwner(p *models.Profile, rfqAgencyID uuid.UUID) error {
	if err := RequireRfqRole(p, AgencyRoles...); err != nil {
		return err
	}
	if err := RequireOrgMembership(p, models.OrgTypeAgency, rfqAgencyID); err != nil {
		return apperr.Forbidden("You do not have access to this RFQ")
	}
	return nil
}
