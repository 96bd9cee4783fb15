package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore implements IdempotencyStorer on Redis so that
// duplicate requests are suppressed across service replicas.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore connects to Redis at addr.
func NewRedisIdempotencyStore(addr, password string, db int, ttl time.Duration) *RedisIdempotencyStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisIdempotencyStore{client: rdb, ttl: ttl}
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}

// Check returns a cached response if one is stored under key.
func (s *RedisIdempotencyStore) Check(key string) (*CachedResponse, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		// Treat a Redis outage as a cache miss: the request is processed
		// again rather than failed.
		slog.Warn("idempotency check failed", "error", err)
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

// Set stores a response under key with the configured TTL.
func (s *RedisIdempotencyStore) Set(key string, statusCode int, headers http.Header, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(CachedResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		CachedAt:   time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, idempotencyKey(key), raw, s.ttl).Err(); err != nil {
		slog.Warn("idempotency store failed", "error", err)
	}
}
