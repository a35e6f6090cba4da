package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-auth-sessions/config"
	"github.com/FACorreiaa/go-auth-sessions/internal/guard"
)

// Ensure mock types implement the required interfaces
var (
	_ UserStore  = (*MockUserStore)(nil)
	_ TokenStore = (*MockTokenStore)(nil)
)

// MockUserStore is a mock implementation of the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserStore) FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error) {
	args := m.Called(ctx, email, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

// MockTokenStore is a mock implementation of the TokenStore interface
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Create(ctx context.Context, record *RefreshTokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTokenStore) FindValidByHash(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefreshTokenRecord), args.Error(1)
}

func (m *MockTokenStore) ConsumeByHash(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenStore) CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:    "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "auth-sessions-test",
	}
}

// testGuard builds a breaker generous enough to never trip in tests.
func testGuard(t *testing.T) *guard.Guard[*User] {
	t.Helper()
	return guard.New[*User]("test-user-store", config.BreakerConfig{
		CallTimeout:   time.Second,
		RollingWindow: 10 * time.Second,
		CoolDown:      30 * time.Second,
		MinRequests:   100,
		FailureRate:   0.99,
	}, slog.Default(), guard.Options{
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
}

func newTestService(t *testing.T, users *MockUserStore, tokens *MockTokenStore) (*SessionServiceImpl, *JWTIssuer) {
	t.Helper()
	logger := slog.Default()
	issuer := NewJWTIssuer(testJWTConfig(), tokens, logger)
	hasher := NewBcryptHasher(10)
	svc := NewSessionService(users, tokens, hasher, issuer, testGuard(t), nil, logger)
	return svc, issuer
}

func activeTestUser(t *testing.T, password string) *User {
	t.Helper()
	hash, err := NewBcryptHasher(10).Hash(password)
	require.NoError(t, err)
	return &User{
		ID:           uuid.New(),
		Email:        "test@example.com",
		Username:     "testuser",
		PasswordHash: hash,
		Role:         RoleUser,
		Status:       StatusActive,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		created := activeTestUser(t, "password123")
		created.Email = "new@example.com"
		created.Username = "newuser"

		mockUsers.On("FindByEmailOrUsername", mock.Anything, "new@example.com", "newuser").
			Return(nil, ErrNotFound).Once()
		mockUsers.On("CreateUser", mock.Anything, mock.MatchedBy(func(p CreateUserParams) bool {
			return p.Email == "new@example.com" && p.Username == "newuser" &&
				p.PasswordHash != "" && p.PasswordHash != "password123"
		})).Return(created, nil).Once()
		mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
			Return(nil).Once()

		result, err := service.Register(ctx, RegisterParams{
			Email:    "New@Example.com",
			Username: "NewUser",
			Password: "password123",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, created.ID, result.User.ID)
		mockUsers.AssertExpectations(t)
		mockTokens.AssertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		existing := activeTestUser(t, "password123")
		existing.Email = "taken@example.com"
		existing.Username = "someoneelse"

		mockUsers.On("FindByEmailOrUsername", mock.Anything, "taken@example.com", "newuser").
			Return(existing, nil).Once()

		_, err := service.Register(ctx, RegisterParams{
			Email:    "taken@example.com",
			Username: "newuser",
			Password: "password123",
		})

		ce, ok := IsConflict(err)
		require.True(t, ok)
		assert.Equal(t, "email", ce.Field)
		mockUsers.AssertExpectations(t)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		existing := activeTestUser(t, "password123")
		existing.Email = "other@example.com"
		existing.Username = "takenname"

		mockUsers.On("FindByEmailOrUsername", mock.Anything, "new@example.com", "takenname").
			Return(existing, nil).Once()

		_, err := service.Register(ctx, RegisterParams{
			Email:    "new@example.com",
			Username: "takenname",
			Password: "password123",
		})

		ce, ok := IsConflict(err)
		require.True(t, ok)
		assert.Equal(t, "username", ce.Field)
		mockUsers.AssertExpectations(t)
	})

	t.Run("InsertRaceSurfacesConflict", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		mockUsers.On("FindByEmailOrUsername", mock.Anything, "race@example.com", "racer").
			Return(nil, ErrNotFound).Once()
		mockUsers.On("CreateUser", mock.Anything, mock.AnythingOfType("auth.CreateUserParams")).
			Return(nil, &ConflictError{Field: "email"}).Once()

		_, err := service.Register(ctx, RegisterParams{
			Email:    "race@example.com",
			Username: "racer",
			Password: "password123",
		})

		_, ok := IsConflict(err)
		assert.True(t, ok)
		mockUsers.AssertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")

		mockUsers.On("FindByIdentifier", mock.Anything, "test@example.com").
			Return(user, nil).Once()
		mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
			Return(nil).Once()

		result, err := service.Login(ctx, "Test@Example.com", "password123", DeviceInfo{})

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		mockUsers.AssertExpectations(t)
		mockTokens.AssertExpectations(t)
	})

	t.Run("UnknownIdentifier", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		mockUsers.On("FindByIdentifier", mock.Anything, "nobody@example.com").
			Return(nil, ErrNotFound).Once()

		_, err := service.Login(ctx, "nobody@example.com", "password123", DeviceInfo{})

		assert.ErrorIs(t, err, ErrInvalidCredentials)
		mockUsers.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")

		mockUsers.On("FindByIdentifier", mock.Anything, "test@example.com").
			Return(user, nil).Once()

		_, err := service.Login(ctx, "test@example.com", "wrongpassword", DeviceInfo{})

		// Indistinguishable from the unknown-identifier failure.
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		mockUsers.AssertExpectations(t)
	})

	t.Run("SuspendedAccount", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		user.Status = StatusSuspended

		mockUsers.On("FindByIdentifier", mock.Anything, "test@example.com").
			Return(user, nil).Once()

		_, err := service.Login(ctx, "test@example.com", "password123", DeviceInfo{})

		assert.ErrorIs(t, err, ErrAccountNotActive)
		mockUsers.AssertExpectations(t)
	})

	t.Run("LoginByUsername", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")

		mockUsers.On("FindByIdentifier", mock.Anything, "testuser").
			Return(user, nil).Once()
		mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
			Return(nil).Once()

		result, err := service.Login(ctx, "testuser", "password123", DeviceInfo{})

		require.NoError(t, err)
		assert.Equal(t, user.ID, result.User.ID)
		mockUsers.AssertExpectations(t)
	})
}

// mintRefreshToken issues a real signed refresh token through the issuer,
// capturing the record that would have been persisted.
func mintRefreshToken(t *testing.T, issuer *JWTIssuer, tokens *MockTokenStore, user *User) (string, *RefreshTokenRecord) {
	t.Helper()
	var record *RefreshTokenRecord
	tokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
		Run(func(args mock.Arguments) {
			record = args.Get(1).(*RefreshTokenRecord)
		}).Return(nil).Once()

	signed, err := issuer.IssueRefreshToken(context.Background(), user, DeviceInfo{UserAgent: "test-agent", IP: "203.0.113.7"})
	require.NoError(t, err)
	require.NotNil(t, record)
	return signed, record
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(record, nil).Once()
		mockUsers.On("FindByID", mock.Anything, user.ID).
			Return(user, nil).Once()
		mockTokens.On("ConsumeByHash", mock.Anything, record.TokenHash).
			Return(true, nil).Once()
		mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
			Return(nil).Once()

		result, err := service.RefreshTokens(ctx, presented)

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.NotEqual(t, presented, result.RefreshToken)
		mockUsers.AssertExpectations(t)
		mockTokens.AssertExpectations(t)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		_, err := service.RefreshTokens(ctx, "")

		assert.ErrorIs(t, err, ErrAuthRequired)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		_, err := service.RefreshTokens(ctx, "not.a.jwt")

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RevokedToken", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		// Store no longer has a valid record for this hash.
		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(nil, ErrNotFound).Once()

		_, err := service.RefreshTokens(ctx, presented)

		assert.ErrorIs(t, err, ErrInvalidToken)
		mockTokens.AssertExpectations(t)
	})

	t.Run("ConcurrentReuseSingleWinner", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(record, nil).Twice()
		mockUsers.On("FindByID", mock.Anything, user.ID).
			Return(user, nil).Twice()
		// The conditional revoke lets exactly one caller through.
		mockTokens.On("ConsumeByHash", mock.Anything, record.TokenHash).
			Return(true, nil).Once()
		mockTokens.On("ConsumeByHash", mock.Anything, record.TokenHash).
			Return(false, nil).Once()
		mockTokens.On("Create", mock.Anything, mock.AnythingOfType("*auth.RefreshTokenRecord")).
			Return(nil).Once()

		first, firstErr := service.RefreshTokens(ctx, presented)
		second, secondErr := service.RefreshTokens(ctx, presented)

		require.NoError(t, firstErr)
		assert.NotEmpty(t, first.RefreshToken)
		assert.Nil(t, second)
		assert.ErrorIs(t, secondErr, ErrInvalidToken)
		mockTokens.AssertExpectations(t)
	})

	t.Run("SuspendedUser", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		suspended := *user
		suspended.Status = StatusSuspended

		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(record, nil).Once()
		mockUsers.On("FindByID", mock.Anything, user.ID).
			Return(&suspended, nil).Once()

		_, err := service.RefreshTokens(ctx, presented)

		assert.ErrorIs(t, err, ErrAccountNotActive)
		mockUsers.AssertExpectations(t)
	})

	t.Run("RecordUserMismatch", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)
		record.UserID = uuid.New()

		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(record, nil).Once()

		_, err := service.RefreshTokens(ctx, presented)

		assert.ErrorIs(t, err, ErrInvalidToken)
		mockTokens.AssertExpectations(t)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		mockTokens.On("RevokeByHash", mock.Anything, record.TokenHash).
			Return(nil).Once()

		err := service.Logout(ctx, presented)

		assert.NoError(t, err)
		mockTokens.AssertExpectations(t)
	})

	t.Run("ExpiredTokenStillRevokes", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		cfg := testJWTConfig()
		cfg.RefreshTokenTTL = -time.Hour
		expiredIssuer := NewJWTIssuer(cfg, mockTokens, slog.Default())

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, expiredIssuer, mockTokens, user)

		mockTokens.On("RevokeByHash", mock.Anything, record.TokenHash).
			Return(nil).Once()

		err := service.Logout(ctx, presented)

		assert.NoError(t, err)
		mockTokens.AssertExpectations(t)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		err := service.Logout(ctx, "")

		assert.ErrorIs(t, err, ErrAuthRequired)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)

		err := service.Logout(ctx, "garbage")

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RefreshAfterLogoutFails", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, issuer := newTestService(t, mockUsers, mockTokens)

		user := activeTestUser(t, "password123")
		presented, record := mintRefreshToken(t, issuer, mockTokens, user)

		mockTokens.On("RevokeByHash", mock.Anything, record.TokenHash).
			Return(nil).Once()
		mockTokens.On("FindValidByHash", mock.Anything, record.TokenHash).
			Return(nil, ErrNotFound).Once()

		require.NoError(t, service.Logout(ctx, presented))

		_, err := service.RefreshTokens(ctx, presented)
		assert.ErrorIs(t, err, ErrInvalidToken)
		mockTokens.AssertExpectations(t)
	})
}

func TestLogoutAll(t *testing.T) {
	ctx := context.Background()

	t.Run("RevokesAllSessions", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)
		userID := uuid.New()

		mockTokens.On("RevokeAllForUser", mock.Anything, userID).
			Return(int64(4), nil).Once()

		revoked, err := service.LogoutAll(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, int64(4), revoked)
		mockTokens.AssertExpectations(t)
	})

	t.Run("NoActiveSessions", func(t *testing.T) {
		mockUsers := new(MockUserStore)
		mockTokens := new(MockTokenStore)
		service, _ := newTestService(t, mockUsers, mockTokens)
		userID := uuid.New()

		mockTokens.On("RevokeAllForUser", mock.Anything, userID).
			Return(int64(0), nil).Once()

		revoked, err := service.LogoutAll(ctx, userID)

		require.NoError(t, err)
		assert.Zero(t, revoked)
		mockTokens.AssertExpectations(t)
	})
}
