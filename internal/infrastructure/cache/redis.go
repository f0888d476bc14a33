package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/pkg/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const insightKeyPrefix = "insight:"

// RedisCache wraps the Redis client and stores adaptive insights
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(cfg *config.CacheConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.Int("db", cfg.DB),
	)

	return NewRedisCacheFromClient(client, logger), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	r.logger.Info("closing redis connection")
	return r.client.Close()
}

func insightKey(sessionID uuid.UUID) string {
	return insightKeyPrefix + sessionID.String()
}

// GetInsight returns the cached insight of a session; a miss is (nil, false, nil)
func (r *RedisCache) GetInsight(ctx context.Context, sessionID uuid.UUID) (*adaptive.Insight, bool, error) {
	data, err := r.client.Get(ctx, insightKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insight: %w", err)
	}

	var insight adaptive.Insight
	if err := json.Unmarshal(data, &insight); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next refresh
		r.logger.Warn("discarding undecodable cached insight",
			slog.String("session_id", sessionID.String()))
		return nil, false, nil
	}

	return &insight, true, nil
}

// SetInsight stores an insight with a TTL
func (r *RedisCache) SetInsight(ctx context.Context, sessionID uuid.UUID, insight *adaptive.Insight, ttl time.Duration) error {
	data, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("failed to encode insight: %w", err)
	}
	return r.client.Set(ctx, insightKey(sessionID), data, ttl).Err()
}

// InvalidateInsight removes the cached insight of a session
func (r *RedisCache) InvalidateInsight(ctx context.Context, sessionID uuid.UUID) error {
	return r.client.Del(ctx, insightKey(sessionID)).Err()
}

// TTL returns the remaining time to live of a session's insight
func (r *RedisCache) TTL(ctx context.Context, sessionID uuid.UUID) (time.Duration, error) {
	return r.client.TTL(ctx, insightKey(sessionID)).Result()
}

// Ping checks if Redis is alive
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Health returns health status of Redis
func (r *RedisCache) Health(ctx context.Context) map[string]interface{} {
	if err := r.Ping(ctx); err != nil {
		return map[string]interface{}{
			"status": "down",
			"error":  err.Error(),
		}
	}

	stats := r.client.PoolStats()

	return map[string]interface{}{
		"status":      "up",
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
