package rfqs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Repository handles rfqs and rfq_invites persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an RFQ repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const rfqColumns = `id, agency_id, created_by_user_id, title, client_name, event_start, event_end,
	venue, scope, attachments, response_deadline, status, created_at, updated_at`

const rfqInviteColumns = `id, rfq_id, supplier_id, status, last_activity_at, created_at`

func scanRfq(row pgx.Row) (*models.Rfq, error) {
	var r models.Rfq
	var start, end *time.Time
	if err := row.Scan(&r.ID, &r.AgencyID, &r.CreatedByUserID, &r.Title, &r.ClientName, &start, &end,
		&r.Venue, &r.Scope, &r.Attachments, &r.ResponseDeadline, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, database.Translate(err)
	}
	if start != nil && end != nil {
		r.EventDates = &models.DateRange{Start: *start, End: *end}
	}
	if r.Attachments == nil {
		r.Attachments = []string{}
	}
	return &r, nil
}

func scanRfqInvite(row pgx.Row) (*models.RfqInvite, error) {
	var inv models.RfqInvite
	if err := row.Scan(&inv.ID, &inv.RfqID, &inv.SupplierID, &inv.Status, &inv.LastActivityAt, &inv.CreatedAt); err != nil {
		return nil, database.Translate(err)
	}
	return &inv, nil
}

func eventBounds(d *models.DateRange) (start, end *time.Time) {
	if d == nil {
		return nil, nil
	}
	s, e := d.Start, d.End
	return &s, &e
}

// CreateRfq inserts an RFQ.
func (r *Repository) CreateRfq(ctx context.Context, rfq *models.Rfq) error {
	const q = `INSERT INTO rfqs (` + rfqColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	start, end := eventBounds(rfq.EventDates)
	attachments := rfq.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	_, err := r.pool.Exec(ctx, q, rfq.ID, rfq.AgencyID, rfq.CreatedByUserID, rfq.Title, rfq.ClientName, start, end,
		rfq.Venue, rfq.Scope, attachments, rfq.ResponseDeadline, rfq.Status, rfq.CreatedAt, rfq.UpdatedAt)
	return database.Translate(err)
}

// GetRfq returns one RFQ.
func (r *Repository) GetRfq(ctx context.Context, id uuid.UUID) (*models.Rfq, error) {
	const q = `SELECT ` + rfqColumns + ` FROM rfqs WHERE id = $1`
	return scanRfq(r.pool.QueryRow(ctx, q, id))
}

// ListRfqsByAgency returns an agency's RFQs, newest first.
func (r *Repository) ListRfqsByAgency(ctx context.Context, agencyID uuid.UUID) ([]*models.Rfq, error) {
	const q = `SELECT ` + rfqColumns + ` FROM rfqs WHERE agency_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Rfq{}
	for rows.Next() {
		rfq, err := scanRfq(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rfq)
	}
	return list, rows.Err()
}

// UpdateRfq writes the editable fields. Status is left alone.
func (r *Repository) UpdateRfq(ctx context.Context, rfq *models.Rfq) error {
	const q = `UPDATE rfqs SET title = $2, client_name = $3, event_start = $4, event_end = $5,
		venue = $6, scope = $7, response_deadline = $8, updated_at = $9
		WHERE id = $1`
	start, end := eventBounds(rfq.EventDates)
	tag, err := r.pool.Exec(ctx, q, rfq.ID, rfq.Title, rfq.ClientName, start, end,
		rfq.Venue, rfq.Scope, rfq.ResponseDeadline, rfq.UpdatedAt)
	if err != nil {
		return database.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// TransitionRfq updates the status only while the row is still in from.
func (r *Repository) TransitionRfq(ctx context.Context, id uuid.UUID, from, to models.RfqStatus, now time.Time) error {
	const q = `UPDATE rfqs SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, q, id, from, to, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// UpdateRfqAttachments replaces the attachment list.
func (r *Repository) UpdateRfqAttachments(ctx context.Context, id uuid.UUID, urls []string, now time.Time) error {
	const q = `UPDATE rfqs SET attachments = $2, updated_at = $3 WHERE id = $1`
	if urls == nil {
		urls = []string{}
	}
	tag, err := r.pool.Exec(ctx, q, id, urls, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteDraftRfq deletes the RFQ only while it is a draft.
func (r *Repository) DeleteDraftRfq(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM rfqs WHERE id = $1 AND status = 'draft'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *Repository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rfqs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return database.ErrNotFound
	}
	return database.ErrConflict
}

// CreateRfqInvite inserts an invite.
func (r *Repository) CreateRfqInvite(ctx context.Context, inv *models.RfqInvite) error {
	const q = `INSERT INTO rfq_invites (` + rfqInviteColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, inv.ID, inv.RfqID, inv.SupplierID, inv.Status, inv.LastActivityAt, inv.CreatedAt)
	return database.Translate(err)
}

// DeleteRfqInvites removes the given invites.
func (r *Repository) DeleteRfqInvites(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rfq_invites WHERE id = ANY($1)`, ids)
	return err
}

// GetRfqInvite returns one invite.
func (r *Repository) GetRfqInvite(ctx context.Context, id uuid.UUID) (*models.RfqInvite, error) {
	const q = `SELECT ` + rfqInviteColumns + ` FROM rfq_invites WHERE id = $1`
	return scanRfqInvite(r.pool.QueryRow(ctx, q, id))
}

// ListRfqInvites returns an RFQ's invites in creation order.
func (r *Repository) ListRfqInvites(ctx context.Context, rfqID uuid.UUID) ([]*models.RfqInvite, error) {
	const q = `SELECT ` + rfqInviteColumns + ` FROM rfq_invites WHERE rfq_id = $1 ORDER BY created_at, id`
	return r.queryInvites(ctx, q, rfqID)
}

// ListRfqInvitesBySupplier returns a supplier's invites, most recent activity first.
func (r *Repository) ListRfqInvitesBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*models.RfqInvite, error) {
	const q = `SELECT ` + rfqInviteColumns + ` FROM rfq_invites WHERE supplier_id = $1 ORDER BY last_activity_at DESC`
	return r.queryInvites(ctx, q, supplierID)
}

func (r *Repository) queryInvites(ctx context.Context, q string, arg any) ([]*models.RfqInvite, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.RfqInvite{}
	for rows.Next() {
		inv, err := scanRfqInvite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// UpdateRfqInviteStatus sets an invite's status and activity time.
func (r *Repository) UpdateRfqInviteStatus(ctx context.Context, id uuid.UUID, status models.InviteStatus, now time.Time) (*models.RfqInvite, error) {
	const q = `UPDATE rfq_invites SET status = $2, last_activity_at = $3 WHERE id = $1
		RETURNING ` + rfqInviteColumns
	return scanRfqInvite(r.pool.QueryRow(ctx, q, id, status, now))
}
