package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// UserRepository resolves directory entries used as notification recipients.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	DepartmentHeadFor(ctx context.Context, userID string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, department_id, is_active
        FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, department_id, is_active
        FROM users WHERE LOWER(email)=LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// DepartmentHeadFor returns nil without error when the user has no
// department or the department has no active head.
func (r *userRepository) DepartmentHeadFor(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
        SELECT h.id, h.name, h.email, h.department_id, h.is_active
        FROM users u
        JOIN departments d ON d.id = u.department_id AND d.is_active
        JOIN users h ON h.id = d.head_user_id
        WHERE u.id=$1 AND h.is_active`
	head, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return head, err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.DepartmentID,
		&user.Active,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
