package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feelkraft/comic-api/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// Upsert inserts the user on first sight and refreshes the email otherwise.
func (r *UserRepositoryPG) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
INSERT INTO users (id, email)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
    updated_at = NOW()
RETURNING id, email, is_pro, free_generations, created_at, updated_at;
`
	return scanUser(r.pool.QueryRow(ctx, query, user.ID, user.Email))
}

// GetByID fetches a user by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, is_pro, free_generations, created_at, updated_at FROM users WHERE id = $1;`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// IncrementFreeGenerations bumps the free usage counter atomically.
func (r *UserRepositoryPG) IncrementFreeGenerations(ctx context.Context, id string) error {
	query := `UPDATE users SET free_generations = free_generations + 1, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// SetPro flips the pro plan flag.
func (r *UserRepositoryPG) SetPro(ctx context.Context, id string, pro bool) error {
	query := `UPDATE users SET is_pro = $2, updated_at = NOW() WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, query, id, pro)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.IsPro,
		&user.FreeGenerations,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
