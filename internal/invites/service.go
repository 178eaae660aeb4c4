// Package invites implements team invitations: issuing hashed single-use
// tokens and redeeming them into organization membership.
package invites

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/notify"
	"github.com/eventmarket/backend/pkg/database"
)

// Store persists org invites.
type Store interface {
	CreateOrgInvite(ctx context.Context, inv *models.OrgInvite) error
	GetOrgInviteByHash(ctx context.Context, tokenHash string) (*models.OrgInvite, error)
	// RedeemOrgInvite marks the invite accepted and applies m to the profile
	// in one transaction. It fails with AlreadyAccepted when the invite was
	// accepted concurrently and AlreadyMember when the profile already has
	// an organization; neither change is kept in that case.
	RedeemOrgInvite(ctx context.Context, inviteID uuid.UUID, userID string, m models.Membership, now time.Time) error
	ListOrgInvites(ctx context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.OrgInvite, error)
}

// ProfileFinder looks up profiles by email.
type ProfileFinder interface {
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
}

// OrganizationGetter loads organizations.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error)
}

// Config controls invite links and lifetime.
type Config struct {
	AppURL string
	TTL    time.Duration
}

// DefaultTTL is the lifetime of a team invite.
const DefaultTTL = 7 * 24 * time.Hour

// Service issues and redeems team invites.
type Service struct {
	guard    *membership.Guard
	store    Store
	profiles ProfileFinder
	orgs     OrganizationGetter
	notifier notify.Dispatcher
	cfg      Config
	now      func() time.Time
	newID    func() uuid.UUID
	random   io.Reader
	logger   *zap.Logger
}

// NewService creates an invite service.
func NewService(guard *membership.Guard, store Store, profiles ProfileFinder, orgs OrganizationGetter,
	notifier notify.Dispatcher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &Service{
		guard:    guard,
		store:    store,
		profiles: profiles,
		orgs:     orgs,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.New,
		logger:   logger,
	}
}

// SendInput is a team invite request.
type SendInput struct {
	Email string
	Role  models.Role
}

// Send issues an invite to join the organization and emails the accept link.
// Only admins of the organization may invite.
func (s *Service) Send(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID, in SendInput) (*models.OrgInvite, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireOrgAdmin(p, t, orgID); err != nil {
		return nil, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, apperr.InvalidInput("Invalid email address")
	}
	email := strings.ToLower(addr.Address)
	if in.Role.OrgType() != t {
		return nil, apperr.InvalidInput(fmt.Sprintf("Role %q is not valid for a %s", in.Role, t))
	}

	_, err = s.profiles.GetProfileByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.KindEmailAlreadyRegistered, "User with this email already exists")
	case !errors.Is(err, database.ErrNotFound):
		return nil, apperr.Internal("look up profile", err)
	}

	org, err := s.orgs.GetOrganization(ctx, t, orgID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("Organization not found")
	}
	if err != nil {
		return nil, apperr.Internal("load organization", err)
	}

	raw, hash, err := NewToken(s.random)
	if err != nil {
		return nil, apperr.Internal("generate token", err)
	}
	now := s.now().UTC()
	inv := &models.OrgInvite{
		ID:              s.newID(),
		OrgType:         t,
		OrgID:           orgID,
		Email:           email,
		Role:            in.Role,
		TokenHash:       hash,
		InvitedByUserID: p.UserID,
		ExpiresAt:       now.Add(s.cfg.TTL),
		CreatedAt:       now,
	}
	if err := s.store.CreateOrgInvite(ctx, inv); err != nil {
		return nil, apperr.Internal("create invite", err)
	}

	params := map[string]string{
		"inviter_name": p.DisplayName(),
		"org_name":     org.Name,
		"org_type":     string(t),
		"role":         string(in.Role),
		"accept_url":   s.acceptURL(raw),
		"expires_at":   inv.ExpiresAt.Format(time.RFC3339),
	}
	if err := s.notifier.Send(ctx, notify.KindTeamInvite, email, params); err != nil {
		s.logger.Warn("Team invite email failed", zap.String("invite_id", inv.ID.String()), zap.Error(err))
	}
	s.logger.Info("Team invite issued",
		zap.String("invite_id", inv.ID.String()), zap.String("org_type", string(t)), zap.String("org_id", orgID.String()))
	return inv, nil
}

func (s *Service) acceptURL(raw string) string {
	return s.cfg.AppURL + "/invite/accept?token=" + url.QueryEscape(raw)
}

// AcceptResult is the outcome of a redeemed invite.
type AcceptResult struct {
	Invite  *models.OrgInvite `json:"invite"`
	Profile *models.Profile   `json:"profile"`
}

// Accept redeems token for the caller.
func (s *Service) Accept(ctx context.Context, id membership.Identity, token string) (*AcceptResult, error) {
	p, err := s.guard.EnsureActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.KindInvalidToken, "Invalid invitation token")
	}

	inv, err := s.store.GetOrgInviteByHash(ctx, HashToken(token))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.KindInvalidToken, "Invalid invitation token")
	}
	if err != nil {
		return nil, apperr.Internal("load invite", err)
	}
	now := s.now().UTC()
	if inv.Expired(now) {
		return nil, apperr.New(apperr.KindExpired, "Invitation has expired")
	}
	if inv.AcceptedAt != nil {
		return nil, apperr.New(apperr.KindAlreadyAccepted, "Invitation has already been accepted")
	}
	if err := membership.RequireNoExistingOrganization(p); err != nil {
		return nil, err
	}

	m := inv.Membership()
	if err := s.store.RedeemOrgInvite(ctx, inv.ID, p.UserID, m, now); err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Internal("redeem invite", err)
	}
	m.Apply(p)
	p.UpdatedAt = now
	inv.AcceptedAt = &now
	s.logger.Info("Team invite accepted",
		zap.String("invite_id", inv.ID.String()), zap.String("user_id", p.UserID))
	return &AcceptResult{Invite: inv, Profile: p}, nil
}

// List returns the organization's invites, newest first. Admins only.
func (s *Service) List(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID) ([]*models.OrgInvite, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireOrgAdmin(p, t, orgID); err != nil {
		return nil, err
	}
	list, err := s.store.ListOrgInvites(ctx, t, orgID)
	if err != nil {
		return nil, apperr.Internal("list invites", err)
	}
	return list, nil
}
