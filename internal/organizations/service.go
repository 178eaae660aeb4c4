// Package organizations implements agency and supplier onboarding, editing
// and directory listings.
package organizations

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Store persists organizations.
type Store interface {
	// CreateWithAdmin inserts org and makes userID its admin in one
	// transaction. The claim fails with AlreadyMember when the profile
	// already belongs to an organization.
	CreateWithAdmin(ctx context.Context, org *models.Organization, userID string) error
	GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	SetPublished(ctx context.Context, t models.OrgType, id uuid.UUID, published bool, now time.Time) (*models.Organization, error)
	ListOrganizations(ctx context.Context, t models.OrgType, f models.DirectoryFilter) ([]*models.Organization, error)
	// ListMembers returns the profiles that belong to the organization.
	ListMembers(ctx context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.Profile, error)
}

// CreateInput is the onboarding form for either organization type.
type CreateInput struct {
	Name        string
	ContactName string
	Email       string
	Phone       string
	Website     string
	LogoURL     string
	Location    models.Location
	Categories  []string
	About       string
	IsPublished *bool
}

// Service implements the organization registry.
type Service struct {
	guard  *membership.Guard
	store  Store
	now    func() time.Time
	newID  func() uuid.UUID
	logger *zap.Logger
}

// NewService creates an organization service.
func NewService(guard *membership.Guard, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{guard: guard, store: store, now: time.Now, newID: uuid.New, logger: logger}
}

// Create onboards the caller as the admin of a new organization.
func (s *Service) Create(ctx context.Context, id membership.Identity, t models.OrgType, in CreateInput) (*models.Organization, error) {
	if !t.Valid() {
		return nil, apperr.InvalidInput("Unknown organization type")
	}
	p, err := s.guard.EnsureActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireNoExistingOrganization(p); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}
	org := &models.Organization{
		ID:          s.newID(),
		Type:        t,
		Name:        strings.TrimSpace(in.Name),
		ContactName: strings.TrimSpace(in.ContactName),
		Email:       normalizeEmail(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Website:     strings.TrimSpace(in.Website),
		LogoURL:     strings.TrimSpace(in.LogoURL),
		Location:    in.Location,
		Categories:  cleanCategories(in.Categories),
		About:       in.About,
		IsPublished: published,
		Status:      models.OrgStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.CreateWithAdmin(ctx, org, p.UserID)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		return nil, duplicateEmail(t, org.Email)
	case apperr.Is(err, apperr.KindAlreadyMember):
		return nil, err
	case err != nil:
		return nil, apperr.Internal("create organization", err)
	}
	s.logger.Info("Organization created",
		zap.String("org_type", string(t)), zap.String("org_id", org.ID.String()), zap.String("admin", p.UserID))
	return org, nil
}

// Update applies a typed partial update. Only admins of the organization may
// update it.
func (s *Service) Update(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID, u models.OrganizationUpdate) (*models.Organization, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.OrgType() != t {
		return nil, apperr.InvalidInput(fmt.Sprintf("Update fields do not match organization type %s", t))
	}
	if err := membership.RequireOrgAdmin(p, t, orgID); err != nil {
		return nil, err
	}
	org, err := s.get(ctx, t, orgID)
	if err != nil {
		return nil, err
	}

	if email := models.UpdatedEmail(u); email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			return nil, apperr.InvalidInput("Invalid email address")
		}
		normalized := normalizeEmail(*email)
		email = &normalized
		u = withEmail(u, email)
	}
	models.ApplyUpdate(org, u)
	if strings.TrimSpace(org.Name) == "" {
		return nil, apperr.InvalidInput("Name is required")
	}
	org.UpdatedAt = s.now().UTC()

	err = s.store.UpdateOrganization(ctx, org)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		return nil, duplicateEmail(t, org.Email)
	case errors.Is(err, database.ErrNotFound):
		return nil, notFound(t)
	case err != nil:
		return nil, apperr.Internal("update organization", err)
	}
	return org, nil
}

// SetPublished toggles directory visibility. Allowed for the organization's
// admins and platform admins.
func (s *Service) SetPublished(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID, published bool) (*models.Organization, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership.RequirePlatformAdmin(p) != nil {
		if err := membership.RequireOrgAdmin(p, t, orgID); err != nil {
			return nil, err
		}
	}
	org, err := s.store.SetPublished(ctx, t, orgID, published, s.now().UTC())
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound(t)
	}
	if err != nil {
		return nil, apperr.Internal("set published", err)
	}
	return org, nil
}

// Get returns one organization to any authenticated caller.
func (s *Service) Get(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID) (*models.Organization, error) {
	if id.UserID == "" {
		return nil, apperr.NotAuthenticated()
	}
	return s.get(ctx, t, orgID)
}

// DirectoryQuery narrows the public directory. Category must match exactly;
// Location matches city, province or country and Query matches the name or
// the about/services text, both case-insensitively.
type DirectoryQuery struct {
	Category string
	Location string
	Query    string
}

// ListPublished returns the public directory for t, optionally filtered.
func (s *Service) ListPublished(ctx context.Context, id membership.Identity, t models.OrgType, q DirectoryQuery) ([]*models.Organization, error) {
	if id.UserID == "" {
		return nil, apperr.NotAuthenticated()
	}
	list, err := s.store.ListOrganizations(ctx, t, models.DirectoryFilter{
		PublishedOnly: true,
		Category:      strings.TrimSpace(q.Category),
		Location:      strings.TrimSpace(q.Location),
		Query:         strings.TrimSpace(q.Query),
	})
	if err != nil {
		return nil, apperr.Internal("list organizations", err)
	}
	return list, nil
}

// ListAll returns every organization of type t. Platform admins only.
func (s *Service) ListAll(ctx context.Context, id membership.Identity, t models.OrgType) ([]*models.Organization, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequirePlatformAdmin(p); err != nil {
		return nil, err
	}
	list, err := s.store.ListOrganizations(ctx, t, models.DirectoryFilter{})
	if err != nil {
		return nil, apperr.Internal("list organizations", err)
	}
	return list, nil
}

// ListMembers returns the team roster. Any member of the organization may
// read it.
func (s *Service) ListMembers(ctx context.Context, id membership.Identity, t models.OrgType, orgID uuid.UUID) ([]*models.Profile, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireOrgMembership(p, t, orgID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, t, orgID)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}
	return members, nil
}

func (s *Service) get(ctx context.Context, t models.OrgType, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.store.GetOrganization(ctx, t, orgID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound(t)
	}
	if err != nil {
		return nil, apperr.Internal("get organization", err)
	}
	return org, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.InvalidInput("Name is required")
	case strings.TrimSpace(in.ContactName) == "":
		return apperr.InvalidInput("Contact name is required")
	case strings.TrimSpace(in.Email) == "":
		return apperr.InvalidInput("Email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.InvalidInput("Invalid email address")
	}
	return nil
}

func withEmail(u models.OrganizationUpdate, email *string) models.OrganizationUpdate {
	switch v := u.(type) {
	case models.AgencyUpdate:
		v.Email = email
		return v
	case models.SupplierUpdate:
		v.Email = email
		return v
	}
	return u
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func label(t models.OrgType) string {
	if t == models.OrgTypeSupplier {
		return "Supplier"
	}
	return "Agency"
}

func notFound(t models.OrgType) error {
	return apperr.NotFound(label(t) + " not found")
}

func duplicateEmail(t models.OrgType, email string) error {
	article := "An"
	if t == models.OrgTypeSupplier {
		article = "A"
	}
	return apperr.New(apperr.KindDuplicateEmail,
		fmt.Sprintf("%s %s with email %s already exists", article, strings.ToLower(label(t)), email))
}
