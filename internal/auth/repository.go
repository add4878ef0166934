package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventman/backend/internal/models"
)

// ErrNotFound means no user row matched the lookup.
var ErrNotFound = errors.New("user not found")

// ErrEmailTaken means the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrUserReferenced means the user still has role request history on file
// and cannot be removed.
var ErrUserReferenced = errors.New("user has role request history")

const userColumns = `id, email, password_hash, name, COALESCE(phone,''), role, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// ExistsByEmail reports whether a user with the email exists.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, name, phone string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, name, phone, role)
		VALUES ($1, $2, $3, NULLIF($4,''), $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, name, phone, string(role)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// UpdateRole sets the user's role and returns the updated row.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	const q = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(role)))
}

// List returns all users ordered by name, newest ties broken by email.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	const q = `SELECT id, email, name, COALESCE(phone,''), role, created_at
		FROM users ORDER BY name, email`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Delete removes a user. Users with role request history are protected by
// the foreign key and reported as ErrUserReferenced.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUserReferenced
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
