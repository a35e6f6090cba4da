package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-auth-sessions/app/observability/metrics"
	"github.com/FACorreiaa/go-auth-sessions/internal/guard"
)

// SessionService is the session lifecycle manager. It orchestrates the
// credential store, token record store, password hasher and token issuer;
// it is the only writer of auth-relevant state.
//
// A session moves Anonymous -> Authenticated -> Refreshed* -> Revoked.
// No single object models this; the state lives in user status, the
// refresh-token records and the tokens the bearer holds.
type SessionService interface {
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)
	Login(ctx context.Context, identifier, password string, device DeviceInfo) (*AuthResult, error)
	RefreshTokens(ctx context.Context, presented string) (*AuthResult, error)
	Logout(ctx context.Context, presented string) error
	// LogoutAll revokes every active refresh token the user holds.
	LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

var _ SessionService = (*SessionServiceImpl)(nil)

type SessionServiceImpl struct {
	logger    *slog.Logger
	users     UserStore
	tokens    TokenStore
	hasher    PasswordHasher
	issuer    TokenIssuer
	userGuard *guard.Guard[*User]
	metrics   *metrics.AppMetrics
}

// NewSessionService wires the session manager. userGuard wraps credential
// store lookups with the circuit breaker; metrics may be nil in tests.
func NewSessionService(
	users UserStore,
	tokens TokenStore,
	hasher PasswordHasher,
	issuer TokenIssuer,
	userGuard *guard.Guard[*User],
	m *metrics.AppMetrics,
	logger *slog.Logger,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		logger:    logger,
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		issuer:    issuer,
		userGuard: userGuard,
		metrics:   m,
	}
}

// Register creates a new active user and hands back a first token pair.
// Not idempotent: retrying after success yields a Conflict.
func (s *SessionServiceImpl) Register(ctx context.Context, params RegisterParams) (result *AuthResult, err error) {
	l := s.logger.With(slog.String("method", "Register"))
	defer s.recordOp(ctx, "register", time.Now(), &err)

	email := strings.ToLower(strings.TrimSpace(params.Email))
	username := strings.ToLower(strings.TrimSpace(params.Username))

	existing, err := s.userGuard.Call(ctx, func(ctx context.Context) (*User, error) {
		return s.users.FindByEmailOrUsername(ctx, email, username)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		l.ErrorContext(ctx, "Duplicate check failed", slog.Any("error", err))
		s.recordStoreError(ctx, "register")
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		field := "username"
		if strings.EqualFold(existing.Email, email) {
			field = "email"
		}
		return nil, &ConflictError{Field: field}
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		l.ErrorContext(ctx, "Password hashing failed", slog.Any("error", err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, CreateUserParams{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
	})
	if err != nil {
		// A concurrent insert may win the race past the duplicate check;
		// the unique index turns that into the same Conflict.
		if _, ok := IsConflict(err); ok {
			return nil, err
		}
		l.ErrorContext(ctx, "User insert failed", slog.Any("error", err))
		s.recordStoreError(ctx, "register")
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err = s.issueTokenPair(ctx, user, params.Device)
	if err != nil {
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	return result, nil
}

// Login authenticates by email or username. Unknown identifier and wrong
// password collapse into the same ErrInvalidCredentials; only the
// active/not-active distinction stays visible.
func (s *SessionServiceImpl) Login(ctx context.Context, identifier, password string, device DeviceInfo) (result *AuthResult, err error) {
	l := s.logger.With(slog.String("method", "Login"))
	defer s.recordOp(ctx, "login", time.Now(), &err)

	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := s.userGuard.Call(ctx, func(ctx context.Context) (*User, error) {
		return s.users.FindByIdentifier(ctx, identifier)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		l.ErrorContext(ctx, "User lookup failed", slog.Any("error", err))
		s.recordStoreError(ctx, "login")
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user.Status != StatusActive {
		return nil, ErrAccountNotActive
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	result, err = s.issueTokenPair(ctx, user, device)
	if err != nil {
		return nil, err
	}

	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	return result, nil
}

// RefreshTokens exchanges a presented refresh token for a new pair,
// rotating the old record. Each token is single-use: the conditional
// revoke guarantees at most one successful rotation per token, so a
// replayed or concurrently reused token fails with ErrInvalidToken.
func (s *SessionServiceImpl) RefreshTokens(ctx context.Context, presented string) (result *AuthResult, err error) {
	l := s.logger.With(slog.String("method", "RefreshTokens"))
	defer s.recordOp(ctx, "refresh", time.Now(), &err)

	if presented == "" {
		return nil, ErrAuthRequired
	}

	claims, err := s.issuer.VerifyRefreshSignature(presented)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// Server-side revocation check; signature verification alone cannot
	// see rotation or logout.
	tokenHash := s.issuer.HashToken(presented)
	record, err := s.tokens.FindValidByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		l.ErrorContext(ctx, "Token record lookup failed", slog.Any("error", err))
		s.recordStoreError(ctx, "refresh")
		return nil, fmt.Errorf("find token record: %w", err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID != record.UserID {
		return nil, ErrInvalidToken
	}

	user, err := s.userGuard.Call(ctx, func(ctx context.Context) (*User, error) {
		return s.users.FindByID(ctx, record.UserID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAccountNotActive
		}
		l.ErrorContext(ctx, "User lookup failed", slog.Any("error", err))
		s.recordStoreError(ctx, "refresh")
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != StatusActive {
		return nil, ErrAccountNotActive
	}

	// Rotate before issuing. The old record stays revoked-but-retained
	// for audit until GC deletes it at its original expiry.
	consumed, err := s.tokens.ConsumeByHash(ctx, tokenHash)
	if err != nil {
		l.ErrorContext(ctx, "Token rotation failed", slog.Any("error", err))
		s.recordStoreError(ctx, "refresh")
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	if !consumed {
		// A concurrent refresh won the race; this token is spent.
		l.WarnContext(ctx, "Refresh token reuse detected",
			slog.String("userID", user.ID.String()))
		return nil, ErrInvalidToken
	}
	if s.metrics != nil {
		s.metrics.TokensRevokedTotal.Add(ctx, 1)
	}

	result, err = s.issueTokenPair(ctx, user, record.Device)
	if err != nil {
		return nil, err
	}

	l.InfoContext(ctx, "Tokens refreshed", slog.String("userID", user.ID.String()))
	return result, nil
}

// Logout revokes the presented token's record. Revoking an unknown or
// already-revoked hash is not an error, and an expired-but-well-signed
// token still logs out cleanly.
func (s *SessionServiceImpl) Logout(ctx context.Context, presented string) (err error) {
	l := s.logger.With(slog.String("method", "Logout"))
	defer s.recordOp(ctx, "logout", time.Now(), &err)

	if presented == "" {
		return ErrAuthRequired
	}

	if _, err := s.issuer.ParseRefreshLenient(presented); err != nil {
		return ErrInvalidToken
	}

	tokenHash := s.issuer.HashToken(presented)
	if err := s.tokens.RevokeByHash(ctx, tokenHash); err != nil {
		l.ErrorContext(ctx, "Token revocation failed", slog.Any("error", err))
		s.recordStoreError(ctx, "logout")
		return fmt.Errorf("revoke token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TokensRevokedTotal.Add(ctx, 1)
	}

	l.InfoContext(ctx, "User logged out")
	return nil
}

// LogoutAll revokes all of the user's outstanding sessions at once, for
// password changes and lost devices.
func (s *SessionServiceImpl) LogoutAll(ctx context.Context, userID uuid.UUID) (revoked int64, err error) {
	l := s.logger.With(slog.String("method", "LogoutAll"), slog.String("userID", userID.String()))
	defer s.recordOp(ctx, "logout_all", time.Now(), &err)

	revoked, err = s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Bulk revocation failed", slog.Any("error", err))
		s.recordStoreError(ctx, "logout_all")
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}
	if s.metrics != nil && revoked > 0 {
		s.metrics.TokensRevokedTotal.Add(ctx, revoked)
	}

	l.InfoContext(ctx, "All sessions revoked", slog.Int64("revoked", revoked))
	return revoked, nil
}

// issueTokenPair mints the access and refresh tokens; refresh issuance
// persists the new record as a side effect.
func (s *SessionServiceImpl) issueTokenPair(ctx context.Context, user *User, device DeviceInfo) (*AuthResult, error) {
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issuer.IssueRefreshToken(ctx, user, device)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Add(ctx, 1)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *SessionServiceImpl) recordOp(ctx context.Context, op string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil && *err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	)
	s.metrics.AuthRequestsTotal.Add(ctx, 1, attrs)
	s.metrics.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (s *SessionServiceImpl) recordStoreError(ctx context.Context, op string) {
	if s.metrics == nil {
		return
	}
	s.metrics.DbQueryErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", op)))
}
