package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
)

// TokenStore persists issued refresh-token state. A record is valid iff
// revoked_at is null and expires_at is in the future; expired rows are
// eligible for physical deletion regardless of revocation.
type TokenStore interface {
	Create(ctx context.Context, record *RefreshTokenRecord) error
	// FindValidByHash returns the valid record for a hash, or ErrNotFound
	// when the hash is unknown, revoked or expired.
	FindValidByHash(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error)
	// ConsumeByHash revokes the record iff it is still valid and reports
	// whether this call performed the revocation. A false result means the
	// token was already used, revoked or expired; concurrent refreshes
	// racing on one token see exactly one true.
	ConsumeByHash(ctx context.Context, tokenHash string) (bool, error)
	// RevokeByHash marks a record revoked. Unknown or already-revoked
	// hashes are not an error; logout is idempotent.
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpired physically removes records past their expiry.
	DeleteExpired(ctx context.Context) (int64, error)
	CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

var _ TokenStore = (*PostgresTokenStore)(nil)

type PostgresTokenStore struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresTokenStore(pgpool api.PgxPool, logger *slog.Logger) *PostgresTokenStore {
	return &PostgresTokenStore{
		logger: logger,
		pgpool: pgpool,
	}
}

func (s *PostgresTokenStore) Create(ctx context.Context, record *RefreshTokenRecord) error {
	row := s.pgpool.QueryRow(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, user_agent, ip)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, created_at`,
		record.UserID, record.TokenHash, record.ExpiresAt,
		nullable(record.Device.UserAgent), nullable(record.Device.IP))

	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("create refresh token record: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) FindValidByHash(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error) {
	var (
		rec       RefreshTokenRecord
		userAgent *string
		ip        *string
	)
	err := s.pgpool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, revoked_at, user_agent, ip, created_at
         FROM refresh_tokens
         WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`,
		tokenHash).Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt,
		&rec.RevokedAt, &userAgent, &ip, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token record: %w", err)
	}
	if userAgent != nil {
		rec.Device.UserAgent = *userAgent
	}
	if ip != nil {
		rec.Device.IP = *ip
	}
	return &rec, nil
}

// ConsumeByHash relies on the conditional update being atomic: of any
// number of concurrent callers presenting the same hash, the database
// lets exactly one flip revoked_at.
func (s *PostgresTokenStore) ConsumeByHash(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`,
		tokenHash)
	if err != nil {
		return false, fmt.Errorf("consume refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	tag, err := s.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already revoked or never stored; treat as revoked.
		s.logger.DebugContext(ctx, "Revoke on unknown or already-revoked token hash")
	}
	return nil
}

func (s *PostgresTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE user_id = $1 AND revoked_at IS NULL`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pgpool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresTokenStore) CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.pgpool.QueryRow(ctx,
		`SELECT count(*) FROM refresh_tokens
         WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active tokens: %w", err)
	}
	return count, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
