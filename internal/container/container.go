package container

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-auth-sessions/app/cache"
	database "github.com/FACorreiaa/go-auth-sessions/app/db"
	"github.com/FACorreiaa/go-auth-sessions/app/observability/metrics"
	"github.com/FACorreiaa/go-auth-sessions/config"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/auth"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/user"
	"github.com/FACorreiaa/go-auth-sessions/internal/guard"
)

// Container holds all application dependencies, constructed once at
// startup and passed explicitly; nothing is looked up globally.
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Metrics     *metrics.AppMetrics
	TokenStore  auth.TokenStore
	AuthHandler *auth.HandlerImpl
	UserHandler *user.HandlerImpl
}

// NewContainer initializes and returns a new dependency container.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}

	redisClient := cache.NewRedisClient(cfg.Repositories.Redis, logger)

	appMetrics, err := metrics.Init()
	if err != nil {
		return nil, err
	}

	// Stores
	userStore := auth.NewPostgresUserStore(pool, logger)
	tokenStore := auth.NewPostgresTokenStore(pool, logger)
	userRepo := user.NewPostgresUserRepo(pool, logger)

	// Credential-store lookups run behind the breaker. Absent records are
	// domain outcomes and must not count toward the failure rate.
	userGuard := guard.New[*auth.User]("credential-store", cfg.Breaker, logger, guard.Options{
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, auth.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				appMetrics.BreakerOpenTotal.Add(context.Background(), 1,
					metric.WithAttributes(attribute.String("breaker", name)))
			}
		},
	})

	hasher := auth.NewBcryptHasher(cfg.Bcrypt.Cost)
	issuer := auth.NewJWTIssuer(cfg.JWT, tokenStore, logger)

	sessionService := auth.NewSessionService(userStore, tokenStore, hasher, issuer, userGuard, appMetrics, logger)
	userService := user.NewUserService(userRepo, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Redis:       redisClient,
		Metrics:     appMetrics,
		TokenStore:  tokenStore,
		AuthHandler: auth.NewHandlerImpl(sessionService, cfg.JWT, logger),
		UserHandler: user.NewHandlerImpl(userService, logger),
	}, nil
}

// Close releases held connections.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
