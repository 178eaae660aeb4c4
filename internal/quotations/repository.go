package quotations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Repository handles quotations persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quotations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quotationColumns = `id, rfq_invite_id, supplier_id, pdf_url, notes, status, version, submitted_at`

// SubmitQuotation runs the replace/insert/mark sequence in one transaction.
// The invite and its RFQ are locked first so concurrent submissions get
// distinct versions and a close racing the submit is seen.
func (r *Repository) SubmitQuotation(ctx context.Context, q *models.Quotation, now time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var inviteStatus models.InviteStatus
		var rfqStatus models.RfqStatus
		err := tx.QueryRow(ctx, `SELECT i.status, r.status FROM rfq_invites i
			JOIN rfqs r ON r.id = i.rfq_id
			WHERE i.id = $1 FOR UPDATE OF i, r`, q.RfqInviteID).Scan(&inviteStatus, &rfqStatus)
		if err != nil {
			return database.Translate(err)
		}
		if err := submittable(rfqStatus, inviteStatus); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE quotations SET status = 'replaced' WHERE rfq_invite_id = $1 AND status = 'submitted'`,
			q.RfqInviteID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM quotations WHERE rfq_invite_id = $1`,
			q.RfqInviteID).Scan(&q.Version); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO quotations (`+quotationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			q.ID, q.RfqInviteID, q.SupplierID, q.PdfURL, q.Notes, q.Status, q.Version, q.SubmittedAt); err != nil {
			return database.Translate(err)
		}
		_, err = tx.Exec(ctx,
			`UPDATE rfq_invites SET status = 'submitted', last_activity_at = $2 WHERE id = $1`,
			q.RfqInviteID, now)
		return err
	})
}

// ListQuotations returns an invite's quotations, newest version first.
func (r *Repository) ListQuotations(ctx context.Context, rfqInviteID uuid.UUID) ([]*models.Quotation, error) {
	const q = `SELECT ` + quotationColumns + ` FROM quotations WHERE rfq_invite_id = $1 ORDER BY version DESC`
	rows, err := r.pool.Query(ctx, q, rfqInviteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Quotation{}
	for rows.Next() {
		var item models.Quotation
		if err := rows.Scan(&item.ID, &item.RfqInviteID, &item.SupplierID, &item.PdfURL, &item.Notes,
			&item.Status, &item.Version, &item.SubmittedAt); err != nil {
			return nil, err
		}
		list = append(list, &item)
	}
	return list, rows.Err()
}

// submittable reports whether a quotation may be recorded against an invite.
func submittable(rfq models.RfqStatus, invite models.InviteStatus) error {
	if rfq != models.RfqStatusSent {
		return apperr.InvalidState("Quotations can only be submitted while the RFQ is open")
	}
	if invite == models.InviteStatusClosed {
		return apperr.InvalidState("This RFQ invite is closed")
	}
	return nil
}
