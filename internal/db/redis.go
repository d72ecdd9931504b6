package db

import (
	"backend-busboxd/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured; the service then
// runs without the redis backend and without cross-process fan-out.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RemoteTimeout > 0 {
		opts.DialTimeout = cfg.RemoteTimeout
		opts.ReadTimeout = cfg.RemoteTimeout
		opts.WriteTimeout = cfg.RemoteTimeout
	}
	return redis.NewClient(opts)
}
