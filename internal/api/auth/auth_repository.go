package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
)

// UserStore is the credential store: passive persistence for user
// records. The session service is the sole writer of auth-relevant
// fields.
type UserStore interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	// FindByEmailOrUsername returns a user matching either identifier
	// case-insensitively, or ErrNotFound.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error)
	// FindByIdentifier matches one identifier against email OR username.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, userID uuid.UUID) (*User, error)
}

var _ UserStore = (*PostgresUserStore)(nil)

type PostgresUserStore struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresUserStore(pgpool api.PgxPool, logger *slog.Logger) *PostgresUserStore {
	return &PostgresUserStore{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, email, username, password_hash, first_name, last_name, bio, avatar_url, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Bio, &u.AvatarURL,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new active user. A concurrent duplicate insert is
// caught by the unique indexes and surfaced as a ConflictError so the
// race between duplicate-check and insert cannot create partial state.
func (s *PostgresUserStore) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	row := s.pgpool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, first_name, last_name, role, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING `+userColumns,
		params.Email, params.Username, params.PasswordHash,
		params.FirstName, params.LastName, RoleUser, StatusActive)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			field := "email"
			if strings.Contains(pgErr.ConstraintName, "username") {
				field = "username"
			}
			return nil, &ConflictError{Field: field}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error) {
	row := s.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
         WHERE lower(email) = lower($1) OR lower(username) = lower($2)`,
		email, username)
	return scanUser(row)
}

func (s *PostgresUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	row := s.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
         WHERE lower(email) = lower($1) OR lower(username) = lower($1)`,
		identifier)
	return scanUser(row)
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := s.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}
