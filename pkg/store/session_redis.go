package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps session records in Redis with TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(addr, password string, ttl time.Duration) (*RedisSessionStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("session store redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}, nil
}

// Save writes the record under the fixed session key with TTL.
func (s *RedisSessionStore) Save(ctx context.Context, token string, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, SessionKeyPrefix+token, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get resolves a token to its record.
func (s *RedisSessionStore) Get(ctx context.Context, token string) (SessionRecord, error) {
	if strings.TrimSpace(token) == "" {
		return SessionRecord{}, ErrSessionNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	raw, err := s.client.Get(ctx, SessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return SessionRecord{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}

// Delete removes a session record.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, SessionKeyPrefix+token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
