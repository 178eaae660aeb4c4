package organizations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// queries holds the statements for one organization table. Agencies and
// suppliers share a shape but name their category and text columns
// differently.
type queries struct {
	insert       string
	claimProfile string
	get          string
	update       string
	setPublished string
	list         string
	listAll      string
	members      string
}

func buildQueries(table, categories, about, profileColumn string) queries {
	cols := fmt.Sprintf(`id, name, contact_name, email, phone, website, logo_url, city, province, country, %s, %s, is_published, status, created_at, updated_at`, categories, about)
	// $1 published only, $2 category, $3 location pattern, $4 text pattern.
	filter := fmt.Sprintf(`(NOT $1 OR (is_published AND status = 'active'))
		AND ($2 = '' OR $2 = ANY(%s))
		AND ($3 = '' OR city ILIKE $3 OR province ILIKE $3 OR country ILIKE $3)
		AND ($4 = '' OR name ILIKE $4 OR %s ILIKE $4)`, categories, about)
	return queries{
		insert: fmt.Sprintf(`INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, table, cols),
		claimProfile: fmt.Sprintf(`UPDATE profiles SET role = $2, %s = $3, updated_at = $4
			WHERE user_id = $1 AND agency_id IS NULL AND supplier_id IS NULL`, profileColumn),
		get: fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cols, table),
		update: fmt.Sprintf(`UPDATE %s SET name = $2, contact_name = $3, email = $4, phone = $5, website = $6,
			logo_url = $7, city = $8, province = $9, country = $10, %s = $11, %s = $12, updated_at = $13
			WHERE id = $1`, table, categories, about),
		setPublished: fmt.Sprintf(`UPDATE %s SET is_published = $2, updated_at = $3 WHERE id = $1 RETURNING %s`, table, cols),
		list:         fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY name`, cols, table, filter),
		listAll:      fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC`, cols, table, filter),
		members:      fmt.Sprintf(`SELECT user_id, first_name, last_name, email, role, agency_id, supplier_id, created_at, updated_at
			FROM profiles WHERE %s = $1 ORDER BY created_at ASC`, profileColumn),
	}
}

var tableQueries = map[models.OrgType]queries{
	models.OrgTypeAgency:   buildQueries("agencies", "interest_categories", "about", "agency_id"),
	models.OrgTypeSupplier: buildQueries("suppliers", "service_categories", "services_text", "supplier_id"),
}

// Repository handles agency and supplier persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func queriesFor(t models.OrgType) (queries, error) {
	q, ok := tableQueries[t]
	if !ok {
		return queries{}, fmt.Errorf("unknown organization type %q", t)
	}
	return q, nil
}

func scanOrganization(t models.OrgType, row pgx.Row) (*models.Organization, error) {
	org := models.Organization{Type: t}
	err := row.Scan(&org.ID, &org.Name, &org.ContactName, &org.Email, &org.Phone, &org.Website, &org.LogoURL,
		&org.Location.City, &org.Location.Province, &org.Location.Country,
		&org.Categories, &org.About, &org.IsPublished, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &org, nil
}

func categoriesArg(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}

// CreateWithAdmin inserts the organization and claims the profile as its
// admin. The claim only matches a profile with no organization.
func (r *Repository) CreateWithAdmin(ctx context.Context, org *models.Organization, userID string) error {
	q, err := queriesFor(org.Type)
	if err != nil {
		return err
	}
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q.insert, org.ID, org.Name, org.ContactName, org.Email, org.Phone, org.Website,
			org.LogoURL, org.Location.City, org.Location.Province, org.Location.Country,
			categoriesArg(org.Categories), org.About, org.IsPublished, org.Status, org.CreatedAt, org.UpdatedAt)
		if err != nil {
			return database.Translate(err)
		}
		tag, err := tx.Exec(ctx, q.claimProfile, userID, models.AdminRole(org.Type), org.ID, org.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.AlreadyMember()
		}
		return nil
	})
}

// GetOrganization returns an organization by type and id.
func (r *Repository) GetOrganization(ctx context.Context, t models.OrgType, id uuid.UUID) (*models.Organization, error) {
	q, err := queriesFor(t)
	if err != nil {
		return nil, err
	}
	return scanOrganization(t, r.pool.QueryRow(ctx, q.get, id))
}

// UpdateOrganization writes the mutable fields of org.
func (r *Repository) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	q, err := queriesFor(org.Type)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, q.update, org.ID, org.Name, org.ContactName, org.Email, org.Phone, org.Website,
		org.LogoURL, org.Location.City, org.Location.Province, org.Location.Country,
		categoriesArg(org.Categories), org.About, org.UpdatedAt)
	if err != nil {
		return database.Translate(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// SetPublished sets the publication flag and returns the updated row.
func (r *Repository) SetPublished(ctx context.Context, t models.OrgType, id uuid.UUID, published bool, now time.Time) (*models.Organization, error) {
	q, err := queriesFor(t)
	if err != nil {
		return nil, err
	}
	return scanOrganization(t, r.pool.QueryRow(ctx, q.setPublished, id, published, now))
}

// ListOrganizations lists organizations of type t matching f. Published
// listings are ordered by name, full listings newest first.
func (r *Repository) ListOrganizations(ctx context.Context, t models.OrgType, f models.DirectoryFilter) ([]*models.Organization, error) {
	q, err := queriesFor(t)
	if err != nil {
		return nil, err
	}
	sql := q.listAll
	if f.PublishedOnly {
		sql = q.list
	}
	rows, err := r.pool.Query(ctx, sql, f.PublishedOnly, f.Category, likePattern(f.Location), likePattern(f.Query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(t, rows)
		if err != nil {
			return nil, err
		}
		list = append(list, org)
	}
	return list, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns s into a substring ILIKE pattern, or "" for no filter.
func likePattern(s string) string {
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

// ListMembers returns the profiles that belong to the organization, oldest
// first.
func (r *Repository) ListMembers(ctx context.Context, t models.OrgType, orgID uuid.UUID) ([]*models.Profile, error) {
	q, err := queriesFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, q.members, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Role,
			&p.AgencyID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
