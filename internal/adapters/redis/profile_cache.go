package redis

// Package redis provides Redis-based adapters for the campus UI API.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// DefaultProfileTTL bounds how long a cached profile may serve reads
// before the backend is consulted again.
const DefaultProfileTTL = 5 * time.Minute

// ProfileCache is a Redis-backed ports.ProfileCache. It holds only the
// server-fetched user snapshot keyed by user ID; credentials never enter
// Redis.
type ProfileCache struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.ProfileCache = (*ProfileCache)(nil)

// NewProfileCache creates a profile cache with the default key prefix.
func NewProfileCache(client redis.UniversalClient) *ProfileCache {
	return NewProfileCacheWithPrefix(client, "profile:")
}

// NewProfileCacheWithPrefix creates a profile cache with a custom key prefix.
func NewProfileCacheWithPrefix(client redis.UniversalClient, prefix string) *ProfileCache {
	return &ProfileCache{
		client: client,
		prefix: prefix,
	}
}

func (c *ProfileCache) key(userID int) string {
	return c.prefix + strconv.Itoa(userID)
}

// Get returns the cached snapshot for a user. A corrupt entry is dropped
// and reported as a miss so the caller refetches.
func (c *ProfileCache) Get(ctx context.Context, userID int) (domainauth.User, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.User{}, false, nil
		}
		return domainauth.User{}, false, fmt.Errorf("redis get: %w", err)
	}

	var user domainauth.User
	if unmarshalErr := json.Unmarshal([]byte(data), &user); unmarshalErr != nil {
		_ = c.client.Del(ctx, c.key(userID)).Err()
		return domainauth.User{}, false, nil
	}
	return user, true, nil
}

// Set stores a snapshot under the user's ID. A non-positive ttl falls
// back to DefaultProfileTTL.
func (c *ProfileCache) Set(ctx context.Context, user domainauth.User, ttl time.Duration) error {
	if user.ID <= 0 {
		return errors.New("user ID must be positive")
	}
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return c.client.Set(ctx, c.key(user.ID), data, ttl).Err()
}

// Invalidate drops the cached snapshot. Missing keys are not an error.
func (c *ProfileCache) Invalidate(ctx context.Context, userID int) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}
