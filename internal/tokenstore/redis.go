package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "globpay:merchant_token"

// Redis stores the token under a single key.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a Redis-backed store.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		trimmed = DefaultRedisKey
	}
	return &Redis{client: client, key: trimmed}
}

// Key returns the Redis key holding the token.
func (r *Redis) Key() string {
	return r.key
}

func (r *Redis) Token(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", gatewayclient.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token from redis: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", gatewayclient.ErrNoToken
	}
	return token, nil
}

func (r *Redis) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to store empty token")
	}
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to write token to redis: %w", err)
	}
	return nil
}

func (r *Redis) ClearToken(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}
