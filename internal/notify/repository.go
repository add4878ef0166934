package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventman/backend/internal/models"
)

// Repository handles notification_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordSent inserts a successful delivery record.
func (r *Repository) RecordSent(ctx context.Context, requestID int64, recipient, subject string, sentAt time.Time) error {
	const q = `INSERT INTO notification_logs (request_id, recipient_email, subject, status, sent_at)
		VALUES ($1, $2, NULLIF($3,''), 'sent', $4)`
	_, err := r.pool.Exec(ctx, q, requestID, recipient, subject, sentAt)
	return err
}

// RecordFailed inserts a failed delivery record with the error message.
func (r *Repository) RecordFailed(ctx context.Context, requestID int64, recipient, subject, errMsg string) error {
	const q = `INSERT INTO notification_logs (request_id, recipient_email, subject, status, error_message)
		VALUES ($1, $2, NULLIF($3,''), 'failed', NULLIF($4,''))`
	_, err := r.pool.Exec(ctx, q, requestID, recipient, subject, errMsg)
	return err
}

// ListRecent returns the newest notification records, up to limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*models.NotificationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, request_id, recipient_email, COALESCE(subject,''), status, sent_at, COALESCE(error_message,''), created_at
		FROM notification_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.NotificationLog
	for rows.Next() {
		var nl models.NotificationLog
		if err := rows.Scan(&nl.ID, &nl.RequestID, &nl.RecipientEmail, &nl.Subject, &nl.Status, &nl.SentAt, &nl.ErrorMessage, &nl.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &nl)
	}
	return list, rows.Err()
}
