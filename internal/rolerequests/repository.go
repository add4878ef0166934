package rolerequests

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventman/backend/internal/models"
)

const requestColumns = `id, user_id, user_email, user_name, requested_role, current_role,
	status, COALESCE(reason,''), COALESCE(admin_notes,''), requested_at, reviewed_at, reviewed_by, COALESCE(reviewed_by_name,'')`

// Repository is the PostgreSQL-backed RequestStore. The one-pending-per-
// (user, role) invariant is enforced by a partial unique index, and decision
// writes are conditional updates on status.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a role request repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (*models.RoleChangeRequest, error) {
	var r models.RoleChangeRequest
	err := row.Scan(&r.ID, &r.UserID, &r.UserEmail, &r.UserName, &r.RequestedRole, &r.CurrentRole,
		&r.Status, &r.Reason, &r.AdminNotes, &r.RequestedAt, &r.ReviewedAt, &r.ReviewedBy, &r.ReviewedByName)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a PENDING request. The insert and the uniqueness check are
// one unit: a concurrent duplicate trips the partial unique index and is
// reported as ErrDuplicatePending.
func (r *Repository) Create(ctx context.Context, req *models.RoleChangeRequest) error {
	const q = `INSERT INTO role_requests
		(user_id, user_email, user_name, requested_role, current_role, status, reason, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8)
		RETURNING id, requested_at`
	err := r.pool.QueryRow(ctx, q,
		req.UserID, req.UserEmail, req.UserName, string(req.RequestedRole), string(req.CurrentRole),
		string(req.Status), req.Reason, req.RequestedAt,
	).Scan(&req.ID, &req.RequestedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePending
		}
		return err
	}
	return nil
}

// GetByID returns a request by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.RoleChangeRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM role_requests WHERE id = $1`
	req, err := scanRequest(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// Approve stamps APPROVED onto a PENDING request and writes the requested
// role onto the user in one transaction: either both rows change or neither
// does, so a failed role write leaves the request PENDING and retryable.
// The status guard is a conditional UPDATE, so of concurrent approvals only
// one commits and the losers see ErrNotPending.
func (r *Repository) Approve(ctx context.Context, id int64, reviewer *models.User, notes string, reviewedAt time.Time) (*models.RoleChangeRequest, *models.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	const decide = `UPDATE role_requests
		SET status = 'APPROVED', reviewed_by = $2, reviewed_by_name = $3, admin_notes = NULLIF($4,''), reviewed_at = $5
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRow(ctx, decide, id, reviewer.ID, reviewer.Name, notes, reviewedAt))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
		var exists bool
		if lookupErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_requests WHERE id = $1)`, id).Scan(&exists); lookupErr != nil {
			return nil, nil, lookupErr
		}
		if !exists {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, ErrNotPending
	}

	const promote = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING id, email, name, COALESCE(phone,''), role, created_at, updated_at`
	var u models.User
	if err := tx.QueryRow(ctx, promote, req.UserID, string(req.RequestedRole)).
		Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return req, &u, nil
}

// MarkReviewed stamps the decision onto a PENDING request. The status guard
// and the write are a single conditional UPDATE, so concurrent reviewers
// cannot both succeed: the loser sees ErrNotPending.
func (r *Repository) MarkReviewed(ctx context.Context, id int64, status models.RequestStatus, reviewerID int64, reviewerName, notes string, reviewedAt time.Time) (*models.RoleChangeRequest, error) {
	const q = `UPDATE role_requests
		SET status = $2, reviewed_by = $3, reviewed_by_name = $4, admin_notes = NULLIF($5,''), reviewed_at = $6
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + requestColumns
	req, err := scanRequest(r.pool.QueryRow(ctx, q, id, string(status), reviewerID, reviewerName, notes, reviewedAt))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Zero rows: either the request is gone or it was already decided.
	var exists bool
	if lookupErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_requests WHERE id = $1)`, id).Scan(&exists); lookupErr != nil {
		return nil, lookupErr
	}
	if !exists {
		return nil, ErrRequestNotFound
	}
	return nil, ErrNotPending
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.RoleChangeRequest, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.RoleChangeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

// ListAll returns every request, newest submissions first.
func (r *Repository) ListAll(ctx context.Context) ([]*models.RoleChangeRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM role_requests ORDER BY requested_at DESC`)
}

// ListPending returns the review queue, newest submissions first.
func (r *Repository) ListPending(ctx context.Context) ([]*models.RoleChangeRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM role_requests WHERE status = 'PENDING' ORDER BY requested_at DESC`)
}

// ListByStatus returns requests in the given status. Decided requests are
// ordered by review time, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleChangeRequest, error) {
	if status == models.StatusPending {
		return r.ListPending(ctx)
	}
	return r.list(ctx, `SELECT `+requestColumns+` FROM role_requests WHERE status = $1 ORDER BY reviewed_at DESC`, string(status))
}

// ListByUser returns a user's requests, newest submissions first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]*models.RoleChangeRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM role_requests WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
}

// Delete removes a request unconditionally.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
