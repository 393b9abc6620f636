package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

func testSession(sessionID string, userID int64, ttl time.Duration) models.Session {
	now := time.Now()
	return models.Session{
		SessionID:           sessionID,
		UserID:              userID,
		RefreshFingerprint:  "fingerprint-" + sessionID,
		ActiveAccessTokenID: "jti-" + sessionID,
		IsActive:            true,
		CreatedAt:           now,
		LastActivityAt:      now,
		ExpiresAt:           now.Add(ttl),
	}
}

func TestCreateSessionSupersedesPrevious(t *testing.T) {
	m := NewSessionManager()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("s1", 1, time.Hour)))
	require.NoError(t, m.CreateSession(ctx, testSession("s2", 1, time.Hour)))
	require.NoError(t, m.CreateSession(ctx, testSession("s3", 2, time.Hour)))

	s1, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s1.IsActive)

	s2, err := m.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, s2.IsActive)

	// Another user's session is untouched.
	s3, err := m.GetSession(ctx, "s3")
	require.NoError(t, err)
	assert.True(t, s3.IsActive)
}

func TestValidateAndTouch(t *testing.T) {
	m := NewSessionManager()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("s1", 1, time.Hour)))

	got, err := m.ValidateAndTouch(ctx, "s1", "fingerprint-s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)

	_, err = m.ValidateAndTouch(ctx, "s1", "wrong")
	assert.ErrorIs(t, err, storage.ErrRefreshMismatch)

	_, err = m.ValidateAndTouch(ctx, "unknown", "fingerprint-s1")
	assert.ErrorIs(t, err, storage.ErrSessionInvalid)
}

func TestValidateAndTouchLazyExpiry(t *testing.T) {
	m := NewSessionManager()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("s1", 1, -time.Minute)))

	_, err := m.ValidateAndTouch(ctx, "s1", "fingerprint-s1")
	assert.ErrorIs(t, err, storage.ErrSessionExpired)

	// Expiry flipped the session inactive; from here on it's invalid.
	_, err = m.ValidateAndTouch(ctx, "s1", "fingerprint-s1")
	assert.ErrorIs(t, err, storage.ErrSessionInvalid)
}

func TestRotateAccessToken(t *testing.T) {
	m := NewSessionManager()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("s1", 1, time.Hour)))
	require.NoError(t, m.RotateAccessToken(ctx, "s1", "jti-new"))

	s, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jti-new", s.ActiveAccessTokenID)

	// Rotation on a deactivated session is a no-op.
	require.NoError(t, m.Deactivate(ctx, "s1"))
	require.NoError(t, m.RotateAccessToken(ctx, "s1", "jti-after-logout"))

	s, err = m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jti-new", s.ActiveAccessTokenID)
}

func TestDeactivateIdempotent(t *testing.T) {
	m := NewSessionManager()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("s1", 1, time.Hour)))
	require.NoError(t, m.Deactivate(ctx, "s1"))
	require.NoError(t, m.Deactivate(ctx, "s1"))
	require.NoError(t, m.Deactivate(ctx, "never-existed"))

	s, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s.IsActive)
}
