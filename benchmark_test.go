package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-sessions/config"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/auth"
)

func benchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func benchIssuer(store auth.TokenStore) *auth.JWTIssuer {
	return auth.NewJWTIssuer(config.JWTConfig{
		AccessSecret:    "bench-access-secret",
		RefreshSecret:   "bench-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "auth-sessions-bench",
	}, store, benchLogger())
}

func benchUser() *auth.User {
	return &auth.User{ID: uuid.New(), Role: auth.RoleUser, Status: auth.StatusActive}
}

// Hashing dominates register and login latency; this tracks the cost of
// the configured floor.
func BenchmarkPasswordHash(b *testing.B) {
	hasher := auth.NewBcryptHasher(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := hasher.Hash("password123"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPasswordVerify(b *testing.B) {
	hasher := auth.NewBcryptHasher(10)
	hash, err := hasher.Hash("password123")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !hasher.Verify("password123", hash) {
			b.Fatal("verify failed")
		}
	}
}

func BenchmarkIssueAccessToken(b *testing.B) {
	issuer := benchIssuer(newMemStore())
	user := benchUser()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := issuer.IssueAccessToken(user); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIssueRefreshToken(b *testing.B) {
	issuer := benchIssuer(newMemStore())
	user := benchUser()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := issuer.IssueRefreshToken(ctx, user, auth.DeviceInfo{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerifyRefreshSignature(b *testing.B) {
	issuer := benchIssuer(newMemStore())
	token, err := issuer.IssueRefreshToken(context.Background(), benchUser(), auth.DeviceInfo{})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := issuer.VerifyRefreshSignature(token); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHashToken(b *testing.B) {
	issuer := benchIssuer(newMemStore())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		issuer.HashToken("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	}
}
