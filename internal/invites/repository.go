package invites

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

// Repository handles org_invites persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invites repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const inviteColumns = `id, org_type, org_id, email, role, token_hash, invited_by_user_id, expires_at, accepted_at, created_at`

func scanInvite(row pgx.Row) (*models.OrgInvite, error) {
	var inv models.OrgInvite
	if err := row.Scan(&inv.ID, &inv.OrgType, &inv.OrgID, &inv.Email, &inv.Role, &inv.TokenHash,
		&inv.InvitedByUserID, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
		return nil, database.Translate(err)
	}
	return &inv, nil
}

// CreateOrgInvite inserts an invite.
func (r *Repository) CreateOrgInvite(ctx context.Context, inv *models.OrgInvite) error {
	const q = `INSERT INTO org_invites (` + inviteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q, inv.ID, inv.OrgType, inv.OrgID, inv.Email, inv.Role, inv.TokenHash,
		inv.InvitedByUserID, inv.ExpiresAt, inv.AcceptedAt, inv.CreatedAt)
	return database.Translate(err)
}

// GetOrgInviteByHash returns the invite whose token hashes to tokenHash.
func (r *Repository) GetOrgInviteByHash(ctx context.Context, tokenHash string) (*models.OrgInvite, error) {
	const q = `SELECT ` + inviteColumns + ` FROM org_invites WHERE token_hash = $1`
	return scanInvite(r.pool.QueryRow(ctx, q, tokenHash))
}

// RedeemOrgInvite sets accepted_at and claims the profile in one transaction.
// Both updates are conditional so concurrent redemptions cannot both win.
func (r *Repository) RedeemOrgInvite(ctx context.Context, inviteID uuid.UUID, userID string, m models.Membership, now time.Time) error {
	const markAccepted = `UPDATE org_invites SET accepted_at = $2
		WHERE id = $1 AND accepted_at IS NULL AND expires_at >= $2`
	const claimAgency = `UPDATE profiles SET role = $2, agency_id = $3, updated_at = $4
		WHERE user_id = $1 AND agency_id IS NULL AND supplier_id IS NULL`
	const claimSupplier = `UPDATE profiles SET role = $2, supplier_id = $3, updated_at = $4
		WHERE user_id = $1 AND agency_id IS NULL AND supplier_id IS NULL`

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, markAccepted, inviteID, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.KindAlreadyAccepted, "Invitation has already been accepted")
		}
		claim := claimAgency
		if m.OrgType == models.OrgTypeSupplier {
			claim = claimSupplier
		}
		tag, err = tx.Exec(ctx, claim, userID, m.Role, m.OrgID, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.AlreadyMember()
		}
		return nil
	})
}

// ListOrgInvites returns an organization's invites, newest first.
func (r *Repository) ListOrgInvites(ctx context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.OrgInvite, error) {
	const q = `SELECT ` + inviteColumns + ` FROM org_invites
		WHERE org_type = $1 AND org_id = $2
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, t, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.OrgInvite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}
