package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shieldops/backend/internal/models"
)

const sessionKeyPrefix = "session:"

// cachedSession has its own field tags because models.Session hides the
// fingerprint and active token id from API JSON, and verification needs both.
type cachedSession struct {
	SessionID           string    `json:"sid"`
	UserID              int64     `json:"uid"`
	RefreshFingerprint  string    `json:"rfp"`
	ActiveAccessTokenID string    `json:"jti"`
	IsActive            bool      `json:"act"`
	CreatedAt           time.Time `json:"cat"`
	LastActivityAt      time.Time `json:"lat"`
	ExpiresAt           time.Time `json:"exp"`
}

// SessionCache is a short-TTL read-through cache for access-token
// verification. A revoked or superseded token may keep verifying for at most
// the cache TTL; rotation and deactivation invalidate the entry eagerly to
// keep that window rare in practice.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func (c *SessionCache) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := c.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get cached session: %w", err)
	}

	var cached cachedSession
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &models.Session{
		SessionID:           cached.SessionID,
		UserID:              cached.UserID,
		RefreshFingerprint:  cached.RefreshFingerprint,
		ActiveAccessTokenID: cached.ActiveAccessTokenID,
		IsActive:            cached.IsActive,
		CreatedAt:           cached.CreatedAt,
		LastActivityAt:      cached.LastActivityAt,
		ExpiresAt:           cached.ExpiresAt,
	}, nil
}

func (c *SessionCache) SetSession(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(cachedSession{
		SessionID:           session.SessionID,
		UserID:              session.UserID,
		RefreshFingerprint:  session.RefreshFingerprint,
		ActiveAccessTokenID: session.ActiveAccessTokenID,
		IsActive:            session.IsActive,
		CreatedAt:           session.CreatedAt,
		LastActivityAt:      session.LastActivityAt,
		ExpiresAt:           session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, sessionKeyPrefix+session.SessionID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

func (c *SessionCache) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("invalidate cached session: %w", err)
	}
	return nil
}
