package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
)

// UserService exposes profile retrieval and update backed by a
// read-through cache; stale entries are replaced on update.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*api.PublicUser, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params api.UpdateProfileRequest) (*api.PublicUser, error)
}

var _ UserService = (*UserServiceImpl)(nil)

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	cache  *gocache.Cache
}

const profileCacheTTL = 5 * time.Minute

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(profileCacheTTL, 10*time.Minute),
	}
}

func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*api.PublicUser, error) {
	key := cacheKey(userID)
	if cached, found := s.cache.Get(key); found {
		if profile, ok := cached.(api.PublicUser); ok {
			return &profile, nil
		}
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	profile := user.Public()
	s.cache.Set(key, profile, gocache.DefaultExpiration)
	return &profile, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params api.UpdateProfileRequest) (*api.PublicUser, error) {
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	user, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	profile := user.Public()
	s.cache.Set(cacheKey(userID), profile, gocache.DefaultExpiration)
	l.InfoContext(ctx, "User profile updated")
	return &profile, nil
}

func cacheKey(userID uuid.UUID) string {
	return "user:" + userID.String()
}
