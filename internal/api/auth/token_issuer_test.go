package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIssueAccessToken(t *testing.T) {
	issuer := NewJWTIssuer(testJWTConfig(), new(MockTokenStore), slog.Default())
	user := &User{ID: uuid.New(), Role: RoleModerator, Status: StatusActive}

	signed, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-access-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, RoleModerator, claims.Role)
	assert.Equal(t, "auth-sessions-test", claims.Issuer)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	mockTokens := new(MockTokenStore)
	issuer := NewJWTIssuer(testJWTConfig(), mockTokens, slog.Default())
	user := &User{ID: uuid.New(), Role: RoleUser, Status: StatusActive}

	var record *RefreshTokenRecord
	mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
		Run(func(args mock.Arguments) {
			record = args.Get(1).(*RefreshTokenRecord)
		}).Return(nil).Once()

	signed, err := issuer.IssueRefreshToken(context.Background(), user, DeviceInfo{UserAgent: "ua", IP: "198.51.100.1"})
	require.NoError(t, err)
	require.NotNil(t, record)

	// The store sees the digest, never the raw token.
	assert.Equal(t, issuer.HashToken(signed), record.TokenHash)
	assert.NotContains(t, record.TokenHash, signed)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, "ua", record.Device.UserAgent)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), record.ExpiresAt, time.Minute)

	claims, err := issuer.VerifyRefreshSignature(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "refresh", claims.TokenType)
	mockTokens.AssertExpectations(t)
}

func TestVerifyRefreshSignatureRejectsAccessToken(t *testing.T) {
	issuer := NewJWTIssuer(testJWTConfig(), new(MockTokenStore), slog.Default())
	user := &User{ID: uuid.New(), Role: RoleUser, Status: StatusActive}

	// Signed with the access secret and missing tokenType.
	accessToken, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshSignature(accessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRefreshSignatureRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTIssuer(testJWTConfig(), new(MockTokenStore), slog.Default())

	mockTokens := new(MockTokenStore)
	mockTokens.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	otherCfg := testJWTConfig()
	otherCfg.RefreshSecret = "a-different-secret"
	otherIssuer := NewJWTIssuer(otherCfg, mockTokens, slog.Default())

	foreign, err := otherIssuer.IssueRefreshToken(context.Background(),
		&User{ID: uuid.New(), Role: RoleUser}, DeviceInfo{})
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshSignature(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRefreshLenient(t *testing.T) {
	cfg := testJWTConfig()
	cfg.RefreshTokenTTL = -time.Hour
	mockTokens := new(MockTokenStore)
	mockTokens.On("Create", mock.Anything, mock.Anything).Return(nil)
	expiredIssuer := NewJWTIssuer(cfg, mockTokens, slog.Default())
	user := &User{ID: uuid.New(), Role: RoleUser, Status: StatusActive}

	expired, err := expiredIssuer.IssueRefreshToken(context.Background(), user, DeviceInfo{})
	require.NoError(t, err)

	// Strict verification refuses the expired token.
	_, err = expiredIssuer.VerifyRefreshSignature(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Lenient parsing accepts it as long as signature and type hold.
	claims, err := expiredIssuer.ParseRefreshLenient(expired)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)

	// Leniency does not extend to a broken signature.
	_, err = expiredIssuer.ParseRefreshLenient(expired + "tampered")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashTokenDeterministic(t *testing.T) {
	issuer := NewJWTIssuer(testJWTConfig(), new(MockTokenStore), slog.Default())

	h1 := issuer.HashToken("some-token")
	h2 := issuer.HashToken("some-token")
	h3 := issuer.HashToken("another-token")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
