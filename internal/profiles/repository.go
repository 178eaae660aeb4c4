package profiles

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Repository handles profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `user_id, first_name, last_name, email, role, agency_id, supplier_id, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Role,
		&p.AgencyID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, database.Translate(err)
	}
	return &p, nil
}

// GetProfile returns the profile for an identity-provider subject.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, q, userID))
}

// GetProfileByEmail returns the profile registered with email (case-insensitive).
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1`
	return scanProfile(r.pool.QueryRow(ctx, q, strings.ToLower(email)))
}

// CreateProfile inserts an unaffiliated profile.
func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile) error {
	const q = `INSERT INTO profiles (user_id, first_name, last_name, email, role, agency_id, supplier_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, q, p.UserID, p.FirstName, p.LastName, p.Email, p.Role,
		p.AgencyID, p.SupplierID, p.CreatedAt, p.UpdatedAt)
	return database.Translate(err)
}
