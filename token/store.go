package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("token redis unavailable")

// ErrRecordCorrupt is returned when the stored blob cannot be decoded.
var ErrRecordCorrupt = errors.New("token record corrupt")

const defaultRedisPrefix = "tk"

// RedisStore persists the token as a single JSON blob under one key, so every
// Read/Write/Clear is one round-trip and atomic on the Redis side.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore returns a store writing under "<prefix>:token". An empty
// prefix falls back to "tk".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		redis: client,
		key:   prefix + ":token",
	}
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context) (Token, bool, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Token{}, false, nil
		}
		return Token{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	return tok, true, nil
}

// Write implements Store. When the token carries an expiry the key inherits a
// matching TTL so an abandoned credential does not outlive its usefulness;
// one hour of slack keeps the refresh token readable past access expiry.
func (s *RedisStore) Write(ctx context.Context, tok Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}

	var ttl time.Duration
	if tok.ExpiresAt > 0 {
		if remaining := time.Until(time.Unix(tok.ExpiresAt, 0)); remaining > 0 {
			ttl = remaining + time.Hour
		}
	}

	if err := s.redis.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
