package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// CreateRfq inserts an RFQ.
func (s *Store) CreateRfq(_ context.Context, r *models.Rfq) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rfqs[r.ID]; ok {
		return database.ErrDuplicate
	}
	s.rfqs[r.ID] = copyRfq(r)
	return nil
}

// GetRfq returns one RFQ.
func (s *Store) GetRfq(_ context.Context, id uuid.UUID) (*models.Rfq, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rfqs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyRfq(r), nil
}

// ListRfqsByAgency returns an agency's RFQs, newest first.
func (s *Store) ListRfqsByAgency(_ context.Context, agencyID uuid.UUID) ([]*models.Rfq, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []*models.Rfq{}
	for _, r := range s.rfqs {
		if r.AgencyID == agencyID {
			list = append(list, copyRfq(r))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// UpdateRfq writes the editable fields of r.
func (s *Store) UpdateRfq(_ context.Context, r *models.Rfq) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rfqs[r.ID]
	if !ok {
		return database.ErrNotFound
	}
	next := copyRfq(r)
	next.Status, next.Attachments = cur.Status, cur.Attachments
	next.AgencyID, next.CreatedByUserID, next.CreatedAt = cur.AgencyID, cur.CreatedByUserID, cur.CreatedAt
	s.rfqs[r.ID] = next
	return nil
}

// TransitionRfq moves the RFQ to to only while it is in from.
func (s *Store) TransitionRfq(_ context.Context, id uuid.UUID, from, to models.RfqStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rfqs[id]
	if !ok {
		return database.ErrNotFound
	}
	if r.Status != from {
		return database.ErrConflict
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// UpdateRfqAttachments replaces the attachment list.
func (s *Store) UpdateRfqAttachments(_ context.Context, id uuid.UUID, urls []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rfqs[id]
	if !ok {
		return database.ErrNotFound
	}
	r.Attachments = append([]string{}, urls...)
	r.UpdatedAt = now
	return nil
}

// DeleteDraftRfq deletes a draft RFQ and its invites.
func (s *Store) DeleteDraftRfq(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rfqs[id]
	if !ok {
		return database.ErrNotFound
	}
	if r.Status != models.RfqStatusDraft {
		return database.ErrConflict
	}
	delete(s.rfqs, id)
	for invID, inv := range s.rfqInvites {
		if inv.RfqID == id {
			s.deleteRfqInvite(invID)
		}
	}
	return nil
}

func (s *Store) deleteRfqInvite(id uuid.UUID) {
	delete(s.rfqInvites, id)
	for qID, q := range s.quotations {
		if q.RfqInviteID == id {
			delete(s.quotations, qID)
		}
	}
}

// CreateRfqInvite inserts an invite. The RFQ must exist.
func (s *Store) CreateRfqInvite(_ context.Context, inv *models.RfqInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rfqs[inv.RfqID]; !ok {
		return database.ErrNotFound
	}
	if _, ok := s.rfqInvites[inv.ID]; ok {
		return database.ErrDuplicate
	}
	s.rfqInvites[inv.ID] = copyRfqInvite(inv)
	return nil
}

// DeleteRfqInvites removes the given invites.
func (s *Store) DeleteRfqInvites(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.deleteRfqInvite(id)
	}
	return nil
}

// GetRfqInvite returns one invite.
func (s *Store) GetRfqInvite(_ context.Context, id uuid.UUID) (*models.RfqInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rfqInvites[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyRfqInvite(inv), nil
}

// ListRfqInvites returns an RFQ's invites in creation order.
func (s *Store) ListRfqInvites(_ context.Context, rfqID uuid.UUID) ([]*models.RfqInvite, error) {
	return s.filterInvites(func(inv *models.RfqInvite) bool { return inv.RfqID == rfqID },
		func(a, b *models.RfqInvite) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID.String() < b.ID.String()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}), nil
}

// ListRfqInvitesBySupplier returns a supplier's invites, most recent activity first.
func (s *Store) ListRfqInvitesBySupplier(_ context.Context, supplierID uuid.UUID) ([]*models.RfqInvite, error) {
	return s.filterInvites(func(inv *models.RfqInvite) bool { return inv.SupplierID == supplierID },
		func(a, b *models.RfqInvite) bool { return a.LastActivityAt.After(b.LastActivityAt) }), nil
}

func (s *Store) filterInvites(keep func(*models.RfqInvite) bool, less func(a, b *models.RfqInvite) bool) []*models.RfqInvite {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []*models.RfqInvite{}
	for _, inv := range s.rfqInvites {
		if keep(inv) {
			list = append(list, copyRfqInvite(inv))
		}
	}
	sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })
	return list
}

// UpdateRfqInviteStatus sets an invite's status and activity time.
func (s *Store) UpdateRfqInviteStatus(_ context.Context, id uuid.UUID, status models.InviteStatus, now time.Time) (*models.RfqInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rfqInvites[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	inv.Status = status
	inv.LastActivityAt = now
	return copyRfqInvite(inv), nil
}

// SubmitQuotation replaces the current quotation with q as the next version
// and marks the invite submitted.
func (s *Store) SubmitQuotation(_ context.Context, q *models.Quotation, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rfqInvites[q.RfqInviteID]
	if !ok {
		return database.ErrNotFound
	}
	r, ok := s.rfqs[inv.RfqID]
	if !ok {
		return database.ErrNotFound
	}
	if r.Status != models.RfqStatusSent {
		return apperr.InvalidState("Quotations can only be submitted while the RFQ is open")
	}
	if inv.Status == models.InviteStatusClosed {
		return apperr.InvalidState("This RFQ invite is closed")
	}
	version := 0
	for _, existing := range s.quotations {
		if existing.RfqInviteID != q.RfqInviteID {
			continue
		}
		if existing.Status == models.QuotationStatusSubmitted {
			existing.Status = models.QuotationStatusReplaced
		}
		version = max(version, existing.Version)
	}
	q.Version = version + 1
	c := *q
	s.quotations[q.ID] = &c
	inv.Status = models.InviteStatusSubmitted
	inv.LastActivityAt = now
	return nil
}

// ListQuotations returns an invite's quotations, newest version first.
func (s *Store) ListQuotations(_ context.Context, rfqInviteID uuid.UUID) ([]*models.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []*models.Quotation{}
	for _, q := range s.quotations {
		if q.RfqInviteID == rfqInviteID {
			c := *q
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Version > list[j].Version })
	return list, nil
}

// CreateEmailLog inserts a log row.
func (s *Store) CreateEmailLog(_ context.Context, el *models.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *el
	s.emailLogs[el.ID] = &c
	return nil
}

// MarkEmailSent records a successful delivery.
func (s *Store) MarkEmailSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.emailLogs[id]
	if !ok {
		return database.ErrNotFound
	}
	sent := at
	el.Status, el.SentAt, el.ErrorMessage = models.EmailLogStatusSent, &sent, ""
	return nil
}

// MarkEmailFailed records a failed delivery attempt.
func (s *Store) MarkEmailFailed(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.emailLogs[id]
	if !ok {
		return database.ErrNotFound
	}
	el.Status, el.ErrorMessage = models.EmailLogStatusFailed, message
	return nil
}

// ListRecentEmailLogs returns up to limit logs, newest first.
func (s *Store) ListRecentEmailLogs(_ context.Context, limit int) ([]*models.EmailLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.EmailLog, 0, len(s.emailLogs))
	for _, el := range s.emailLogs {
		c := *el
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
