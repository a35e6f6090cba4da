package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
)

// Role values assignable to a user. Registration always starts at RoleUser;
// promotion is an administrative action outside this service.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Account status values. Only StatusActive may log in or refresh.
// StatusDeleted is a soft marker; rows are never hard-deleted here.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
	StatusBanned    = "banned"
)

// User is the credential-store identity record.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	FirstName    *string
	LastName     *string
	Bio          *string
	AvatarURL    *string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public converts the record to the outward projection, dropping the
// password hash.
func (u *User) Public() api.PublicUser {
	return api.PublicUser{
		ID:       u.ID.String(),
		Email:    u.Email,
		Username: u.Username,
		Profile: api.UserProfile{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Bio:       u.Bio,
			AvatarURL: u.AvatarURL,
		},
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// DeviceInfo is optional request metadata recorded alongside a refresh
// token and carried forward across rotations.
type DeviceInfo struct {
	UserAgent string
	IP        string
}

// RefreshTokenRecord is the server-side state of one issued refresh token.
// Only the SHA-256 hash of the signed token is stored; a record is valid
// iff RevokedAt is nil and ExpiresAt is in the future.
type RefreshTokenRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	Device    DeviceInfo
	CreatedAt time.Time
}

// Valid reports whether the record may still be exchanged.
func (r *RefreshTokenRecord) Valid(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// CreateUserParams is the credential-store insert payload. Email and
// Username are expected pre-normalized to lowercase.
type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    *string
	LastName     *string
}

// RegisterParams is the validated registration payload handed to the
// session service.
type RegisterParams struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
	Device    DeviceInfo
}

// AuthResult bundles the user and the freshly minted token pair.
type AuthResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// AccessClaims are embedded in access tokens.
type AccessClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are embedded in refresh tokens. TokenType must equal
// "refresh" for the token to be exchangeable.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

const refreshTokenType = "refresh"
