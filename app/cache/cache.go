package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/go-auth-sessions/config"
)

// NewRedisClient builds a redis client from configuration. A nil client is
// returned when the server is unreachable; callers degrade by disabling
// rate limiting rather than refusing to start.
func NewRedisClient(cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, continuing without it",
			slog.String("addr", cfg.Addr), slog.Any("error", err))
		return nil
	}

	logger.Info("Redis connection established", slog.String("addr", cfg.Addr))
	return client
}
