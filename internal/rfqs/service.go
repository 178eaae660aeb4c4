// Package rfqs implements the RFQ lifecycle: drafting, sending to suppliers,
// status changes and the supplier invites an RFQ fans out to.
package rfqs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/notify"
	"github.com/eventmarket/backend/pkg/database"
	"github.com/eventmarket/backend/pkg/storage"
)

// Store persists RFQs and their supplier invites.
type Store interface {
	CreateRfq(ctx context.Context, r *models.Rfq) error
	GetRfq(ctx context.Context, id uuid.UUID) (*models.Rfq, error)
	ListRfqsByAgency(ctx context.Context, agencyID uuid.UUID) ([]*models.Rfq, error)
	// UpdateRfq writes the editable fields of r, not its status.
	UpdateRfq(ctx context.Context, r *models.Rfq) error
	// TransitionRfq moves the RFQ from one status to another only if it is
	// still in from; otherwise it returns ErrConflict.
	TransitionRfq(ctx context.Context, id uuid.UUID, from, to models.RfqStatus, now time.Time) error
	UpdateRfqAttachments(ctx context.Context, id uuid.UUID, urls []string, now time.Time) error
	// DeleteDraftRfq deletes the RFQ only while it is a draft; otherwise it
	// returns ErrConflict.
	DeleteDraftRfq(ctx context.Context, id uuid.UUID) error

	CreateRfqInvite(ctx context.Context, inv *models.RfqInvite) error
	DeleteRfqInvites(ctx context.Context, ids []uuid.UUID) error
	GetRfqInvite(ctx context.Context, id uuid.UUID) (*models.RfqInvite, error)
	ListRfqInvites(ctx context.Context, rfqID uuid.UUID) ([]*models.RfqInvite, error)
	ListRfqInvitesBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*models.RfqInvite, error)
	UpdateRfqInviteStatus(ctx context.Context, id uuid.UUID, status models.InviteStatus, now time.Time) (*models.RfqInvite, error)
}

// OrganizationGetter loads organizations.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error)
}

// Presigner issues direct upload URLs.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, size int64) (*storage.Upload, error)
}

// SupplierScope controls which invite rows a supplier may read for an RFQ.
type SupplierScope string

const (
	// ScopeAny lets any supplier member read every invite of an RFQ.
	ScopeAny SupplierScope = "any"
	// ScopeOwn limits supplier members to their own invite.
	ScopeOwn SupplierScope = "own"
)

// Config controls links and read scope.
type Config struct {
	AppURL        string
	SupplierScope SupplierScope
	// SendConcurrency bounds parallel invite creation and notification.
	SendConcurrency int
}

// Service implements the RFQ lifecycle.
type Service struct {
	guard    *membership.Guard
	store    Store
	orgs     OrganizationGetter
	notifier notify.Dispatcher
	files    Presigner
	cfg      Config
	now      func() time.Time
	newID    func() uuid.UUID
	logger   *zap.Logger
}

// NewService creates an RFQ service. files may be nil when storage is not
// configured.
func NewService(guard *membership.Guard, store Store, orgs OrganizationGetter, notifier notify.Dispatcher,
	files Presigner, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SupplierScope == "" {
		cfg.SupplierScope = ScopeAny
	}
	if cfg.SendConcurrency <= 0 {
		cfg.SendConcurrency = 8
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &Service{
		guard:    guard,
		store:    store,
		orgs:     orgs,
		notifier: notifier,
		files:    files,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.New,
		logger:   logger,
	}
}

// CreateInput is a new RFQ. Any client-supplied agency is ignored.
type CreateInput struct {
	Title            string
	ClientName       string
	EventDates       *models.DateRange
	Venue            string
	Scope            string
	Attachments      []string
	ResponseDeadline time.Time
}

// Create drafts an RFQ owned by the caller's agency.
func (s *Service) Create(ctx context.Context, id membership.Identity, in CreateInput) (*models.Rfq, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqRole(p, membership.AgencyRoles...); err != nil {
		return nil, err
	}
	if p.AgencyID == nil {
		return nil, apperr.Forbidden("You must belong to an agency to create RFQs")
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	attachments, err := cleanURLs(in.Attachments)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &models.Rfq{
		ID:               s.newID(),
		AgencyID:         *p.AgencyID,
		CreatedByUserID:  p.UserID,
		Title:            strings.TrimSpace(in.Title),
		ClientName:       strings.TrimSpace(in.ClientName),
		EventDates:       in.EventDates,
		Venue:            strings.TrimSpace(in.Venue),
		Scope:            in.Scope,
		Attachments:      attachments,
		ResponseDeadline: in.ResponseDeadline.UTC(),
		Status:           models.RfqStatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateRfq(ctx, r); err != nil {
		return nil, apperr.Internal("create rfq", err)
	}
	s.logger.Info("RFQ created", zap.String("rfq_id", r.ID.String()), zap.String("agency_id", r.AgencyID.String()))
	return r, nil
}

// Get returns an RFQ to members of the owning agency or to supplier members.
func (s *Service) Get(ctx context.Context, id membership.Identity, rfqID uuid.UUID) (*models.Rfq, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if membership.RequireOrgMembership(p, models.OrgTypeAgency, r.AgencyID) == nil {
		return r, nil
	}
	if _, err := s.supplierInviteScope(ctx, p, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the RFQs of the caller's agency, newest first.
func (s *Service) List(ctx context.Context, id membership.Identity) ([]*models.Rfq, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqRole(p, membership.AgencyRoles...); err != nil {
		return nil, err
	}
	if p.AgencyID == nil {
		return nil, apperr.Forbidden("You must belong to an agency to list RFQs")
	}
	list, err := s.store.ListRfqsByAgency(ctx, *p.AgencyID)
	if err != nil {
		return nil, apperr.Internal("list rfqs", err)
	}
	return list, nil
}

// Update applies a partial update. A status change must be allowed by the
// state machine and cannot be combined with field edits; drafts are only
// sent through Send.
func (s *Service) Update(ctx context.Context, id membership.Identity, rfqID uuid.UUID, u models.RfqUpdate) (*models.Rfq, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqOwner(p, r.AgencyID); err != nil {
		return nil, err
	}
	if err := validateUpdate(u); err != nil {
		return nil, err
	}
	statusChange := u.Status != nil && *u.Status != r.Status
	if statusChange && u.HasFields() {
		return nil, apperr.InvalidInput("Change the status and other fields in separate requests")
	}

	now := s.now().UTC()
	if statusChange {
		to := *u.Status
		if to == models.RfqStatusSent {
			return nil, apperr.InvalidState("Use send to move a draft RFQ to sent")
		}
		if err := r.Status.Transition(to); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidState, fmt.Sprintf("Cannot change RFQ status from %s to %s", r.Status, to), err)
		}
		err := s.store.TransitionRfq(ctx, r.ID, r.Status, to, now)
		if errors.Is(err, database.ErrConflict) {
			return nil, apperr.InvalidState("RFQ status changed, reload and try again")
		}
		if err != nil {
			return nil, apperr.Internal("transition rfq", err)
		}
		r.Status = to
		r.UpdatedAt = now
	}

	if u.HasFields() {
		u.Apply(r)
		r.UpdatedAt = now
		err := s.store.UpdateRfq(ctx, r)
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("RFQ not found")
		}
		if err != nil {
			return nil, apperr.Internal("update rfq", err)
		}
	}
	return r, nil
}

// UpdateAttachments replaces the attachment URL list.
func (s *Service) UpdateAttachments(ctx context.Context, id membership.Identity, rfqID uuid.UUID, urls []string) (*models.Rfq, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqOwner(p, r.AgencyID); err != nil {
		return nil, err
	}
	cleaned, err := cleanURLs(urls)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	err = s.store.UpdateRfqAttachments(ctx, r.ID, cleaned, now)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("RFQ not found")
	}
	if err != nil {
		return nil, apperr.Internal("update attachments", err)
	}
	r.Attachments = cleaned
	r.UpdatedAt = now
	return r, nil
}

// AttachmentUploadURL presigns an upload for a new RFQ attachment.
func (s *Service) AttachmentUploadURL(ctx context.Context, id membership.Identity, rfqID uuid.UUID, filename string, size int64) (*storage.Upload, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqOwner(p, r.AgencyID); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, storage.ErrDisabled
	}
	contentType, ok := storage.ContentTypeFor(filename, storage.AllowedAttachmentExtensions)
	if !ok {
		return nil, apperr.InvalidInput("Attachments must be PDF, DOC, DOCX, JPEG or PNG files")
	}
	if size <= 0 || size > storage.MaxAttachmentSize {
		return nil, apperr.InvalidInput("Attachments must be between 1 byte and 20MB")
	}
	up, err := s.files.PresignUpload(ctx, storage.AttachmentKey(r.ID, filename), contentType, size)
	if err != nil {
		return nil, apperr.Internal("presign attachment", err)
	}
	return up, nil
}

// Delete removes a draft RFQ.
func (s *Service) Delete(ctx context.Context, id membership.Identity, rfqID uuid.UUID) error {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return err
	}
	if err := membership.RequireRfqOwner(p, r.AgencyID); err != nil {
		return err
	}
	if r.Status != models.RfqStatusDraft {
		return apperr.InvalidState("Only draft RFQs can be deleted")
	}
	err = s.store.DeleteDraftRfq(ctx, r.ID)
	switch {
	case errors.Is(err, database.ErrConflict):
		return apperr.InvalidState("Only draft RFQs can be deleted")
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound("RFQ not found")
	case err != nil:
		return apperr.Internal("delete rfq", err)
	}
	s.logger.Info("RFQ deleted", zap.String("rfq_id", r.ID.String()))
	return nil
}

// SendReport summarises a send. Notification counts are best effort and
// never affect the stored state.
type SendReport struct {
	Rfq                 *models.Rfq         `json:"rfq"`
	Invites             []*models.RfqInvite `json:"invites"`
	InvitesCreated      int                 `json:"invites_created"`
	NotificationsQueued int                 `json:"notifications_queued"`
	NotificationsFailed int                 `json:"notifications_failed"`
	SuppliersMissing    int                 `json:"suppliers_missing"`
}

// Send invites each supplier to a draft RFQ and marks it sent. Invites are
// all written before the guarded draft to sent update; if that update loses
// a race the invites written here are removed. Emails go out afterwards.
func (s *Service) Send(ctx context.Context, id membership.Identity, rfqID uuid.UUID, supplierIDs []uuid.UUID) (*SendReport, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateSuppliers(supplierIDs); err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqOwner(p, r.AgencyID); err != nil {
		return nil, err
	}
	if err := r.Status.Transition(models.RfqStatusSent); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidState, "Only draft RFQs can be sent", err)
	}

	now := s.now().UTC()
	invites, err := s.createInvites(ctx, r.ID, supplierIDs, now)
	if err != nil {
		return nil, err
	}

	err = s.store.TransitionRfq(ctx, r.ID, models.RfqStatusDraft, models.RfqStatusSent, now)
	if err != nil {
		s.discardInvites(ctx, r.ID, invites)
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, apperr.InvalidState("Only draft RFQs can be sent")
		case errors.Is(err, database.ErrNotFound):
			return nil, apperr.NotFound("RFQ not found")
		}
		return nil, apperr.Internal("mark rfq sent", err)
	}
	r.Status = models.RfqStatusSent
	r.UpdatedAt = now

	report := &SendReport{Rfq: r, Invites: invites, InvitesCreated: len(invites)}
	s.notifySuppliers(ctx, r, invites, report)
	s.logger.Info("RFQ sent",
		zap.String("rfq_id", r.ID.String()),
		zap.Int("invites", report.InvitesCreated),
		zap.Int("notifications_queued", report.NotificationsQueued),
		zap.Int("notifications_failed", report.NotificationsFailed),
		zap.Int("suppliers_missing", report.SuppliersMissing))
	return report, nil
}

func (s *Service) createInvites(ctx context.Context, rfqID uuid.UUID, supplierIDs []uuid.UUID, now time.Time) ([]*models.RfqInvite, error) {
	invites := make([]*models.RfqInvite, len(supplierIDs))
	for i, supplierID := range supplierIDs {
		invites[i] = &models.RfqInvite{
			ID:             s.newID(),
			RfqID:          rfqID,
			SupplierID:     supplierID,
			Status:         models.InviteStatusInvited,
			LastActivityAt: now,
			CreatedAt:      now,
		}
	}

	var mu sync.Mutex
	var created []*models.RfqInvite
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SendConcurrency)
	for _, inv := range invites {
		inv := inv
		g.Go(func() error {
			if err := s.store.CreateRfqInvite(gctx, inv); err != nil {
				return fmt.Errorf("invite supplier %s: %w", inv.SupplierID, err)
			}
			mu.Lock()
			created = append(created, inv)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discardInvites(ctx, rfqID, created)
		return nil, apperr.Internal("create rfq invites", err)
	}
	return invites, nil
}

func (s *Service) discardInvites(ctx context.Context, rfqID uuid.UUID, invites []*models.RfqInvite) {
	if len(invites) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(invites))
	for i, inv := range invites {
		ids[i] = inv.ID
	}
	if err := s.store.DeleteRfqInvites(context.WithoutCancel(ctx), ids); err != nil {
		s.logger.Error("Failed to remove invites of unsent RFQ",
			zap.String("rfq_id", rfqID.String()), zap.Int("count", len(ids)), zap.Error(err))
	}
}

func (s *Service) notifySuppliers(ctx context.Context, r *models.Rfq, invites []*models.RfqInvite, report *SendReport) {
	agencyName := ""
	if agency, err := s.orgs.GetOrganization(ctx, models.OrgTypeAgency, r.AgencyID); err == nil {
		agencyName = agency.Name
	} else {
		s.logger.Warn("Could not load agency for RFQ emails", zap.String("rfq_id", r.ID.String()), zap.Error(err))
	}

	var queued, failed, missing atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.SendConcurrency)
	for _, inv := range invites {
		inv := inv
		g.Go(func() error {
			supplier, err := s.orgs.GetOrganization(ctx, models.OrgTypeSupplier, inv.SupplierID)
			if errors.Is(err, database.ErrNotFound) {
				missing.Add(1)
				s.logger.Warn("RFQ invite addressed to unknown supplier",
					zap.String("rfq_id", r.ID.String()), zap.String("supplier_id", inv.SupplierID.String()))
				return nil
			}
			if err != nil {
				failed.Add(1)
				s.logger.Warn("Could not load supplier for RFQ email",
					zap.String("supplier_id", inv.SupplierID.String()), zap.Error(err))
				return nil
			}
			params := map[string]string{
				"supplier_name":     supplier.Name,
				"agency_name":       agencyName,
				"rfq_title":         r.Title,
				"client_name":       r.ClientName,
				"response_deadline": r.ResponseDeadline.Format(time.RFC3339),
				"rfq_url":           fmt.Sprintf("%s/supplier/rfqs/%s", s.cfg.AppURL, r.ID),
			}
			if err := s.notifier.Send(ctx, notify.KindRfqInvite, supplier.Email, params); err != nil {
				failed.Add(1)
				s.logger.Warn("RFQ invite email failed",
					zap.String("supplier_id", inv.SupplierID.String()), zap.Error(err))
				return nil
			}
			queued.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.NotificationsQueued = int(queued.Load())
	report.NotificationsFailed = int(failed.Load())
	report.SuppliersMissing = int(missing.Load())
}

// InvitesForRfq lists the supplier invites of an RFQ. Owning agency members
// see all rows; supplier members see all rows or only their own depending on
// the configured scope.
func (s *Service) InvitesForRfq(ctx context.Context, id membership.Identity, rfqID uuid.UUID) ([]*models.RfqInvite, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if membership.RequireOrgMembership(p, models.OrgTypeAgency, r.AgencyID) == nil {
		return s.listInvites(ctx, r.ID)
	}
	return s.supplierInviteScope(ctx, p, r.ID)
}

// supplierInviteScope returns the invite rows of rfqID visible to a supplier
// member, or Forbidden.
func (s *Service) supplierInviteScope(ctx context.Context, p *models.Profile, rfqID uuid.UUID) ([]*models.RfqInvite, error) {
	if err := membership.RequireRfqRole(p, membership.SupplierRoles...); err != nil || p.SupplierID == nil {
		return nil, apperr.Forbidden("You do not have access to this RFQ")
	}
	all, err := s.listInvites(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if s.cfg.SupplierScope != ScopeOwn {
		return all, nil
	}
	own := make([]*models.RfqInvite, 0, 1)
	for _, inv := range all {
		if inv.SupplierID == *p.SupplierID {
			own = append(own, inv)
		}
	}
	if len(own) == 0 {
		return nil, apperr.Forbidden("You do not have access to this RFQ")
	}
	return own, nil
}

// SupplierInvite is an invite with the RFQ it refers to.
type SupplierInvite struct {
	Invite *models.RfqInvite `json:"invite"`
	Rfq    *models.Rfq       `json:"rfq"`
}

// InvitesForSupplier lists the caller's supplier's invites with their RFQs.
func (s *Service) InvitesForSupplier(ctx context.Context, id membership.Identity) ([]SupplierInvite, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqRole(p, membership.SupplierRoles...); err != nil {
		return nil, err
	}
	if p.SupplierID == nil {
		return nil, apperr.Forbidden("You must belong to a supplier to view RFQ invites")
	}
	invites, err := s.store.ListRfqInvitesBySupplier(ctx, *p.SupplierID)
	if err != nil {
		return nil, apperr.Internal("list supplier invites", err)
	}
	out := make([]SupplierInvite, 0, len(invites))
	for _, inv := range invites {
		r, err := s.store.GetRfq(ctx, inv.RfqID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal("load rfq", err)
		}
		out = append(out, SupplierInvite{Invite: inv, Rfq: r})
	}
	return out, nil
}

// UpdateInviteStatus records supplier activity on an invite. Allowed for the
// owning agency's members and the addressed supplier's members.
func (s *Service) UpdateInviteStatus(ctx context.Context, id membership.Identity, inviteID uuid.UUID, status models.InviteStatus) (*models.RfqInvite, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !status.Valid() || status == models.InviteStatusInvited {
		return nil, apperr.InvalidInput("Status must be opened, submitted or closed")
	}
	inv, err := s.store.GetRfqInvite(ctx, inviteID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("RFQ invite not found")
	}
	if err != nil {
		return nil, apperr.Internal("load rfq invite", err)
	}
	r, err := s.load(ctx, inv.RfqID)
	if err != nil {
		return nil, err
	}
	if membership.RequireOrgMembership(p, models.OrgTypeSupplier, inv.SupplierID) != nil &&
		membership.RequireOrgMembership(p, models.OrgTypeAgency, r.AgencyID) != nil {
		return nil, apperr.Forbidden("You do not have access to this RFQ invite")
	}
	updated, err := s.store.UpdateRfqInviteStatus(ctx, inv.ID, status, s.now().UTC())
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("RFQ invite not found")
	}
	if err != nil {
		return nil, apperr.Internal("update rfq invite", err)
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, rfqID uuid.UUID) (*models.Rfq, error) {
	r, err := s.store.GetRfq(ctx, rfqID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("RFQ not found")
	}
	if err != nil {
		return nil, apperr.Internal("load rfq", err)
	}
	return r, nil
}

func (s *Service) listInvites(ctx context.Context, rfqID uuid.UUID) ([]*models.RfqInvite, error) {
	list, err := s.store.ListRfqInvites(ctx, rfqID)
	if err != nil {
		return nil, apperr.Internal("list rfq invites", err)
	}
	return list, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return apperr.InvalidInput("Title is required")
	case strings.TrimSpace(in.ClientName) == "":
		return apperr.InvalidInput("Client name is required")
	case strings.TrimSpace(in.Scope) == "":
		return apperr.InvalidInput("Scope is required")
	case in.ResponseDeadline.IsZero():
		return apperr.InvalidInput("Response deadline is required")
	case in.EventDates != nil && !in.EventDates.Valid():
		return apperr.InvalidInput("Event end date must not be before the start date")
	}
	return nil
}

func validateUpdate(u models.RfqUpdate) error {
	blank := func(s *string) bool { return s != nil && strings.TrimSpace(*s) == "" }
	switch {
	case blank(u.Title):
		return apperr.InvalidInput("Title cannot be empty")
	case blank(u.ClientName):
		return apperr.InvalidInput("Client name cannot be empty")
	case blank(u.Scope):
		return apperr.InvalidInput("Scope cannot be empty")
	case u.ResponseDeadline != nil && u.ResponseDeadline.IsZero():
		return apperr.InvalidInput("Response deadline cannot be empty")
	case u.EventDates != nil && !u.EventDates.Valid():
		return apperr.InvalidInput("Event end date must not be before the start date")
	case u.Status != nil && !u.Status.Valid():
		return apperr.InvalidInput(fmt.Sprintf("Unknown RFQ status %q", *u.Status))
	}
	return nil
}

func validateSuppliers(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.InvalidInput("Select at least one supplier")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return apperr.InvalidInput("Supplier ids must not be empty")
		}
		if _, ok := seen[id]; ok {
			return apperr.InvalidInput(fmt.Sprintf("Supplier %s is listed more than once", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

func cleanURLs(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperr.InvalidInput(fmt.Sprintf("Invalid attachment URL %q", raw))
		}
		out = append(out, raw)
	}
	return out, nil
}
