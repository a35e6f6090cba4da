package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-auth-sessions/config"
)

// TokenIssuer mints and verifies signed tokens. Access tokens are
// stateless; refresh issuance persists a hashed record through the token
// store so tokens can be revoked before their signed expiry.
type TokenIssuer interface {
	IssueAccessToken(user *User) (string, error)
	IssueRefreshToken(ctx context.Context, user *User, device DeviceInfo) (string, error)
	VerifyRefreshSignature(token string) (*RefreshClaims, error)
	ParseRefreshLenient(token string) (*RefreshClaims, error)
	HashToken(raw string) string
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

var _ TokenIssuer = (*JWTIssuer)(nil)

// JWTIssuer signs HS256 tokens with two distinct secrets, one per token
// class.
type JWTIssuer struct {
	cfg    config.JWTConfig
	tokens TokenStore
	logger *slog.Logger
}

func NewJWTIssuer(cfg config.JWTConfig, tokens TokenStore, logger *slog.Logger) *JWTIssuer {
	return &JWTIssuer{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
	}
}

// IssueAccessToken mints a short-lived token carrying {userId, role}.
// Nothing is persisted.
func (i *JWTIssuer) IssueAccessToken(user *User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken mints a longer-lived token carrying {userId,
// tokenType:"refresh"} and persists a RefreshTokenRecord holding the
// token's SHA-256 hash, expiry and device metadata. The raw signed string
// is returned to the caller and never stored.
func (i *JWTIssuer) IssueRefreshToken(ctx context.Context, user *User, device DeviceInfo) (string, error) {
	now := time.Now()
	expiresAt := now.Add(i.cfg.RefreshTokenTTL)
	claims := RefreshClaims{
		UserID:    user.ID.String(),
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record := &RefreshTokenRecord{
		UserID:    user.ID,
		TokenHash: i.HashToken(signed),
		ExpiresAt: expiresAt,
		Device:    device,
	}
	if err := i.tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store refresh token record: %w", err)
	}

	return signed, nil
}

// VerifyRefreshSignature validates signature, expiry and token type.
func (i *JWTIssuer) VerifyRefreshSignature(token string) (*RefreshClaims, error) {
	claims, err := i.parseRefresh(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefreshLenient validates signature and token type but tolerates an
// expired token. Logout uses it so an expired session can still be
// revoked idempotently.
func (i *JWTIssuer) ParseRefreshLenient(token string) (*RefreshClaims, error) {
	claims, err := i.parseRefresh(token)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrInvalidToken
	}
	if claims == nil || claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *JWTIssuer) parseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(i.cfg.RefreshSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Signature checked out; let lenient callers decide.
			return claims, jwt.ErrTokenExpired
		}
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of the raw signed token. The
// store only ever sees this digest.
func (i *JWTIssuer) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (i *JWTIssuer) AccessTokenTTL() time.Duration { return i.cfg.AccessTokenTTL }

func (i *JWTIssuer) RefreshTokenTTL() time.Duration { return i.cfg.RefreshTokenTTL }
