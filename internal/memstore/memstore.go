// Package memstore is an in-memory implementation of every store the
// marketplace services use. It keeps the conditional-update semantics of the
// Postgres repositories under a single mutex, so it serves both local runs
// with DB_DRIVER=memory and service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Store holds all marketplace records in memory.
type Store struct {
	mu         sync.Mutex
	profiles   map[string]*models.Profile
	orgs       map[models.OrgType]map[uuid.UUID]*models.Organization
	orgInvites map[uuid.UUID]*models.OrgInvite
	rfqs       map[uuid.UUID]*models.Rfq
	rfqInvites map[uuid.UUID]*models.RfqInvite
	quotations map[uuid.UUID]*models.Quotation
	emailLogs  map[uuid.UUID]*models.EmailLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles: make(map[string]*models.Profile),
		orgs: map[models.OrgType]map[uuid.UUID]*models.Organization{
			models.OrgTypeAgency:   {},
			models.OrgTypeSupplier: {},
		},
		orgInvites: make(map[uuid.UUID]*models.OrgInvite),
		rfqs:       make(map[uuid.UUID]*models.Rfq),
		rfqInvites: make(map[uuid.UUID]*models.RfqInvite),
		quotations: make(map[uuid.UUID]*models.Quotation),
		emailLogs:  make(map[uuid.UUID]*models.EmailLog),
	}
}

func copyProfile(p *models.Profile) *models.Profile {
	c := *p
	if p.AgencyID != nil {
		id := *p.AgencyID
		c.AgencyID = &id
	}
	if p.SupplierID != nil {
		id := *p.SupplierID
		c.SupplierID = &id
	}
	return &c
}

func copyOrganization(o *models.Organization) *models.Organization {
	c := *o
	c.Categories = append([]string{}, o.Categories...)
	return &c
}

func copyOrgInvite(inv *models.OrgInvite) *models.OrgInvite {
	c := *inv
	if inv.AcceptedAt != nil {
		at := *inv.AcceptedAt
		c.AcceptedAt = &at
	}
	return &c
}

func copyRfq(r *models.Rfq) *models.Rfq {
	c := *r
	c.Attachments = append([]string{}, r.Attachments...)
	if r.EventDates != nil {
		d := *r.EventDates
		c.EventDates = &d
	}
	return &c
}

func copyRfqInvite(inv *models.RfqInvite) *models.RfqInvite {
	c := *inv
	return &c
}

// Profiles

// GetProfile returns the profile of userID.
func (s *Store) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyProfile(p), nil
}

// GetProfileByEmail returns the profile with email, compared case-insensitively.
func (s *Store) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.profileByEmail(email); p != nil {
		return copyProfile(p), nil
	}
	return nil, database.ErrNotFound
}

func (s *Store) profileByEmail(email string) *models.Profile {
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			return p
		}
	}
	return nil
}

// CreateProfile inserts p. User id and email are unique.
func (s *Store) CreateProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; ok {
		return database.ErrDuplicate
	}
	if s.profileByEmail(p.Email) != nil {
		return database.ErrDuplicate
	}
	s.profiles[p.UserID] = copyProfile(p)
	return nil
}

// claim attaches the profile to m if it has no organization yet.
func (s *Store) claim(userID string, m models.Membership, now time.Time) bool {
	p, ok := s.profiles[userID]
	if !ok || p.HasOrganization() {
		return false
	}
	m.Apply(p)
	p.UpdatedAt = now
	return true
}

// Organizations

func (s *Store) orgTable(t models.OrgType) (map[uuid.UUID]*models.Organization, error) {
	table, ok := s.orgs[t]
	if !ok {
		return nil, database.ErrNotFound
	}
	return table, nil
}

func emailTaken(table map[uuid.UUID]*models.Organization, email string, except uuid.UUID) bool {
	for id, o := range table {
		if id != except && o.Email == email {
			return true
		}
	}
	return false
}

// CreateWithAdmin inserts org and makes userID its admin. Neither change is
// kept when the email is taken or the profile already has an organization.
func (s *Store) CreateWithAdmin(_ context.Context, org *models.Organization, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.orgTable(org.Type)
	if err != nil {
		return err
	}
	if _, ok := table[org.ID]; ok || emailTaken(table, org.Email, uuid.Nil) {
		return database.ErrDuplicate
	}
	m := models.Membership{OrgType: org.Type, OrgID: org.ID, Role: models.AdminRole(org.Type)}
	if !s.claim(userID, m, org.CreatedAt) {
		return apperr.AlreadyMember()
	}
	table[org.ID] = copyOrganization(org)
	return nil
}

// GetOrganization returns one organization.
func (s *Store) GetOrganization(_ context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.orgTable(t)
	if err != nil {
		return nil, err
	}
	o, ok := table[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyOrganization(o), nil
}

// UpdateOrganization replaces the stored organization's mutable fields.
func (s *Store) UpdateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.orgTable(org.Type)
	if err != nil {
		return err
	}
	cur, ok := table[org.ID]
	if !ok {
		return database.ErrNotFound
	}
	if emailTaken(table, org.Email, org.ID) {
		return database.ErrDuplicate
	}
	next := copyOrganization(org)
	next.IsPublished, next.Status, next.CreatedAt = cur.IsPublished, cur.Status, cur.CreatedAt
	table[org.ID] = next
	return nil
}

// SetPublished sets the published flag.
func (s *Store) SetPublished(_ context.Context, t models.OrgType, id uuid.UUID, published bool, now time.Time) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.orgTable(t)
	if err != nil {
		return nil, err
	}
	o, ok := table[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	o.IsPublished = published
	o.UpdatedAt = now
	return copyOrganization(o), nil
}

// ListOrganizations returns the organizations matching f: published
// listings by name, full listings newest first.
func (s *Store) ListOrganizations(_ context.Context, t models.OrgType, f models.DirectoryFilter) ([]*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.orgTable(t)
	if err != nil {
		return nil, err
	}
	list := []*models.Organization{}
	for _, o := range table {
		if f.Matches(o) {
			list = append(list, copyOrganization(o))
		}
	}
	if f.PublishedOnly {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	} else {
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	}
	return list, nil
}

// ListMembers returns the profiles belonging to the organization, oldest
// first.
func (s *Store) ListMembers(_ context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []*models.Profile{}
	for _, p := range s.profiles {
		if id := p.OrgID(t); id != nil && *id == orgID {
			list = append(list, copyProfile(p))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// Team invites

// CreateOrgInvite inserts an invite. Token hashes are unique.
func (s *Store) CreateOrgInvite(_ context.Context, inv *models.OrgInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgInvites {
		if existing.ID == inv.ID || existing.TokenHash == inv.TokenHash {
			return database.ErrDuplicate
		}
	}
	s.orgInvites[inv.ID] = copyOrgInvite(inv)
	return nil
}

// GetOrgInviteByHash returns the invite with tokenHash.
func (s *Store) GetOrgInviteByHash(_ context.Context, tokenHash string) (*models.OrgInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.orgInvites {
		if inv.TokenHash == tokenHash {
			return copyOrgInvite(inv), nil
		}
	}
	return nil, database.ErrNotFound
}

// RedeemOrgInvite marks the invite accepted and claims the profile, or
// changes nothing.
func (s *Store) RedeemOrgInvite(_ context.Context, inviteID uuid.UUID, userID string, m models.Membership, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.orgInvites[inviteID]
	if !ok || inv.AcceptedAt != nil || now.After(inv.ExpiresAt) {
		return apperr.New(apperr.KindAlreadyAccepted, "Invitation has already been accepted")
	}
	if !s.claim(userID, m, now) {
		return apperr.AlreadyMember()
	}
	at := now
	inv.AcceptedAt = &at
	return nil
}

// ListOrgInvites returns an organization's invites, newest first.
func (s *Store) ListOrgInvites(_ context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.OrgInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []*models.OrgInvite{}
	for _, inv := range s.orgInvites {
		if inv.OrgType == t && inv.OrgID == orgID {
			list = append(list, copyOrgInvite(inv))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
