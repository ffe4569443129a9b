package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"problem_market/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", config.AppConfig.RedisAddr, err)
	}
	slog.Info("Successfully connected to Redis", "addr", config.AppConfig.RedisAddr)
	RDB = rdb
	return rdb, nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		slog.Info("Redis connection closed")
	}
}

// Store is a small byte cache with per-key expiry.
type Store struct {
	rdb    redis.Cmdable
	prefix string
}

func NewStore(rdb redis.Cmdable, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Get reports a miss as ok == false with a nil error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
