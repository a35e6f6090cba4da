package auth

import (
	"errors"
	"fmt"
)

// Closed set of operational errors the session service surfaces. The HTTP
// layer maps them to status codes; everything else is an internal fault.
var (
	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password so responses cannot be used for user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthRequired means no refresh token was presented at all.
	ErrAuthRequired = errors.New("refresh token missing")

	// ErrInvalidToken covers bad signature, expiry, wrong token type and
	// server-side revocation.
	ErrInvalidToken = errors.New("invalid or expired refresh token")

	// ErrAccountNotActive is returned once existence is confirmed but the
	// account status blocks the operation. Unlike credentials, status is
	// not treated as a secret.
	ErrAccountNotActive = errors.New("account is not active")

	// ErrNotFound is the generic absent-record error from the stores.
	ErrNotFound = errors.New("requested item not found")
)

// ConflictError reports a duplicate email or username at registration.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

// IsConflict unwraps err into a ConflictError if it is one.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
