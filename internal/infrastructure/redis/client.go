package redis

import (
	"github.com/redis/go-redis/v9"
	"github.com/tribe-otp/internal/config"
)

// NewClient creates a Redis client from the REDIS_* settings.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
