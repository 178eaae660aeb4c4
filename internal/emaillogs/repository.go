package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateEmailLog inserts a log row.
func (r *Repository) CreateEmailLog(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, kind, recipient_email, subject, status, sent_at, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, q, el.ID, el.Kind, el.RecipientEmail, el.Subject, el.Status, el.SentAt, el.ErrorMessage, el.CreatedAt)
	return database.Translate(err)
}

// MarkEmailSent records a successful delivery.
func (r *Repository) MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE email_logs SET status = 'sent', sent_at = $2, error_message = '' WHERE id = $1`
	return r.exec(ctx, q, id, at)
}

// MarkEmailFailed records a failed delivery attempt.
func (r *Repository) MarkEmailFailed(ctx context.Context, id uuid.UUID, message string) error {
	const q = `UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1`
	return r.exec(ctx, q, id, message)
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ListRecentEmailLogs returns up to limit logs, newest first.
func (r *Repository) ListRecentEmailLogs(ctx context.Context, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, kind, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.Kind, &el.RecipientEmail, &el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
