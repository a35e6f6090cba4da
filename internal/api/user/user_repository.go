package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/auth"
)

// UserRepo reads and updates profile fields. Users soft-deleted by status
// are treated as absent.
type UserRepo interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*auth.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params api.UpdateProfileRequest) (*auth.User, error)
}

var _ UserRepo = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresUserRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, email, username, password_hash, first_name, last_name, bio, avatar_url, role, status, created_at, updated_at`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*auth.User, error) {
	var u auth.User
	err := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND status != $2`,
		userID, auth.StatusDeleted).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Bio, &u.AvatarURL,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateProfile applies a partial update; nil fields keep their current
// value via COALESCE.
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params api.UpdateProfileRequest) (*auth.User, error) {
	var u auth.User
	err := r.pgpool.QueryRow(ctx,
		`UPDATE users SET
            first_name = COALESCE($2, first_name),
            last_name  = COALESCE($3, last_name),
            bio        = COALESCE($4, bio),
            avatar_url = COALESCE($5, avatar_url),
            updated_at = now()
         WHERE id = $1 AND status != $6
         RETURNING `+userColumns,
		userID, params.FirstName, params.LastName, params.Bio, params.AvatarURL,
		auth.StatusDeleted).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Bio, &u.AvatarURL,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &u, nil
}
