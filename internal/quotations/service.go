// Package quotations stores supplier quotations against RFQ invites.
package quotations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/notify"
	"github.com/eventmarket/backend/pkg/database"
	"github.com/eventmarket/backend/pkg/storage"
)

// Store persists quotations.
type Store interface {
	// SubmitQuotation marks the invite's current quotation replaced, inserts
	// q with the next version and marks the invite submitted, atomically.
	// It sets q.Version.
	SubmitQuotation(ctx context.Context, q *models.Quotation, now time.Time) error
	ListQuotations(ctx context.Context, rfqInviteID uuid.UUID) ([]*models.Quotation, error)
}

// RfqReader loads the RFQ and invite a quotation refers to.
type RfqReader interface {
	GetRfq(ctx context.Context, id uuid.UUID) (*models.Rfq, error)
	GetRfqInvite(ctx context.Context, id uuid.UUID) (*models.RfqInvite, error)
}

// OrganizationGetter loads organizations.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error)
}

// Presigner issues direct upload URLs.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, size int64) (*storage.Upload, error)
}

// Service implements quotation submission.
type Service struct {
	guard    *membership.Guard
	store    Store
	rfqs     RfqReader
	orgs     OrganizationGetter
	notifier notify.Dispatcher
	files    Presigner
	appURL   string
	now      func() time.Time
	newID    func() uuid.UUID
	logger   *zap.Logger
}

// NewService creates a quotation service. files may be nil.
func NewService(guard *membership.Guard, store Store, rfqs RfqReader, orgs OrganizationGetter,
	notifier notify.Dispatcher, files Presigner, appURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		guard:    guard,
		store:    store,
		rfqs:     rfqs,
		orgs:     orgs,
		notifier: notifier,
		files:    files,
		appURL:   strings.TrimRight(appURL, "/"),
		now:      time.Now,
		newID:    uuid.New,
		logger:   logger,
	}
}

// SubmitInput is a quotation submission.
type SubmitInput struct {
	PdfURL string
	Notes  string
}

// Submit records a new quotation version for the caller's invite.
func (s *Service) Submit(ctx context.Context, id membership.Identity, inviteID uuid.UUID, in SubmitInput) (*models.Quotation, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	inv, r, err := s.load(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireRfqRole(p, membership.SupplierRoles...); err != nil {
		return nil, err
	}
	if err := membership.RequireOrgMembership(p, models.OrgTypeSupplier, inv.SupplierID); err != nil {
		return nil, apperr.Forbidden("You do not have access to this RFQ invite")
	}
	if r.Status != models.RfqStatusSent {
		return nil, apperr.InvalidState("Quotations can only be submitted while the RFQ is open")
	}
	if inv.Status == models.InviteStatusClosed {
		return nil, apperr.InvalidState("This RFQ invite is closed")
	}
	if err := validatePdfURL(in.PdfURL); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	q := &models.Quotation{
		ID:          s.newID(),
		RfqInviteID: inv.ID,
		SupplierID:  inv.SupplierID,
		PdfURL:      strings.TrimSpace(in.PdfURL),
		Notes:       strings.TrimSpace(in.Notes),
		Status:      models.QuotationStatusSubmitted,
		SubmittedAt: now,
	}
	err = s.store.SubmitQuotation(ctx, q, now)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("RFQ invite not found")
	}
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Internal("submit quotation", err)
	}
	s.logger.Info("Quotation submitted",
		zap.String("rfq_invite_id", inv.ID.String()), zap.Int("version", q.Version))

	s.notifyAgency(ctx, r, q)
	return q, nil
}

func (s *Service) notifyAgency(ctx context.Context, r *models.Rfq, q *models.Quotation) {
	agency, err := s.orgs.GetOrganization(ctx, models.OrgTypeAgency, r.AgencyID)
	if err != nil {
		s.logger.Warn("Could not load agency for quotation email", zap.String("rfq_id", r.ID.String()), zap.Error(err))
		return
	}
	supplierName := ""
	if supplier, err := s.orgs.GetOrganization(ctx, models.OrgTypeSupplier, q.SupplierID); err == nil {
		supplierName = supplier.Name
	}
	params := map[string]string{
		"agency_name":   agency.Name,
		"supplier_name": supplierName,
		"rfq_title":     r.Title,
		"version":       strconv.Itoa(q.Version),
		"rfq_url":       fmt.Sprintf("%s/rfqs/%s", s.appURL, r.ID),
	}
	if err := s.notifier.Send(ctx, notify.KindQuotationReceived, agency.Email, params); err != nil {
		s.logger.Warn("Quotation email failed", zap.String("rfq_id", r.ID.String()), zap.Error(err))
	}
}

// List returns an invite's quotations, newest version first.
func (s *Service) List(ctx context.Context, id membership.Identity, inviteID uuid.UUID) ([]*models.Quotation, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	inv, r, err := s.load(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(p, inv, r); err != nil {
		return nil, err
	}
	list, err := s.store.ListQuotations(ctx, inv.ID)
	if err != nil {
		return nil, apperr.Internal("list quotations", err)
	}
	return list, nil
}

// UploadURL presigns a PDF upload for the caller's invite.
func (s *Service) UploadURL(ctx context.Context, id membership.Identity, inviteID uuid.UUID, filename string, size int64) (*storage.Upload, error) {
	p, err := s.guard.ResolveActingProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	inv, _, err := s.load(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if err := membership.RequireOrgMembership(p, models.OrgTypeSupplier, inv.SupplierID); err != nil {
		return nil, apperr.Forbidden("You do not have access to this RFQ invite")
	}
	if s.files == nil {
		return nil, storage.ErrDisabled
	}
	contentType, ok := storage.ContentTypeFor(filename, storage.AllowedQuotationExtensions)
	if !ok {
		return nil, apperr.InvalidInput("Quotations must be PDF files")
	}
	if size <= 0 || size > storage.MaxAttachmentSize {
		return nil, apperr.InvalidInput("Quotations must be between 1 byte and 20MB")
	}
	up, err := s.files.PresignUpload(ctx, storage.QuotationKey(inv.ID), contentType, size)
	if err != nil {
		return nil, apperr.Internal("presign quotation", err)
	}
	return up, nil
}

func (s *Service) load(ctx context.Context, inviteID uuid.UUID) (*models.RfqInvite, *models.Rfq, error) {
	inv, err := s.rfqs.GetRfqInvite(ctx, inviteID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, apperr.NotFound("RFQ invite not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("load rfq invite", err)
	}
	r, err := s.rfqs.GetRfq(ctx, inv.RfqID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, apperr.NotFound("RFQ not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("load rfq", err)
	}
	return inv, r, nil
}

func requireParty(p *models.Profile, inv *models.RfqInvite, r *models.Rfq) error {
	if membership.RequireOrgMembership(p, models.OrgTypeSupplier, inv.SupplierID) == nil ||
		membership.RequireOrgMembership(p, models.OrgTypeAgency, r.AgencyID) == nil {
		return nil
	}
	return apperr.Forbidden("You do not have access to this RFQ invite")
}

func validatePdfURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.InvalidInput("pdf_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.InvalidInput("pdf_url must be an http(s) URL")
	}
	return nil
}
