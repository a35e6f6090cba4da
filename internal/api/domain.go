package api

import "time"

// Response is the generic success envelope for endpoints without a payload.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegisterRequest represents the expected JSON body for user registration.
// Payloads arrive schema-validated by the HTTP layer; handlers only re-check
// the presence of required fields.
type RegisterRequest struct {
	Email     string `json:"email" example:"newuser@example.com"`
	Username  string `json:"username" example:"testuser"`
	Password  string `json:"password" example:"Str0ngP@ss!"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// LoginRequest represents the expected JSON body for user login. The
// identifier matches either email or username, case-insensitively.
type LoginRequest struct {
	Identifier string `json:"identifier" example:"user@example.com"`
	Password   string `json:"password" example:"password123"`
}

// RefreshRequest is the body fallback for clients not using the cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// PublicUser is the outward user projection. It never carries the
// password hash.
type PublicUser struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	Profile   UserProfile `json:"profile"`
	Role      string      `json:"role"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type UserProfile struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

// TokenInfo carries the access token for the response body. The refresh
// token travels separately in an httpOnly cookie.
type TokenInfo struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// AuthResponse is the success payload for register, login and refresh.
type AuthResponse struct {
	User   PublicUser `json:"user"`
	Tokens TokenInfo  `json:"tokens"`
}

// UpdateProfileRequest carries partial profile updates; nil fields are
// left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}
