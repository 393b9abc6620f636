package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/storage"
	"github.com/shieldops/backend/internal/storage/memory"
	"github.com/shieldops/backend/internal/util"
)

func newTestTokenService(accessTTL, sessionTTL time.Duration) (*service.TokenService, *memory.SessionManager) {
	cfg := &util.TokenConfig{
		JwtSecretKey: []byte("test-secret-key"),
		AccessTTL:    accessTTL,
		RefreshTTL:   sessionTTL,
		SessionTTL:   sessionTTL,
	}
	sessions := memory.NewSessionManager()
	return service.NewTokenService(cfg, sessions, nil), sessions
}

var testMeta = models.UserMetadata{UserAgent: "go-test", IPAddress: "127.0.0.1"}

func TestIssueAndVerify(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 42, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.SessionID)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)

	claims, err := ts.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, pair.SessionID, claims.SessionID)
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	newAccess, err := ts.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, newAccess)

	claims, err := ts.VerifyAccessToken(ctx, newAccess)
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, claims.SessionID)

	// The pre-refresh access token is superseded, not merely old.
	_, err = ts.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, service.ErrTokenRevoked)
}

func TestRefreshWithTamperedVerifier(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	tampered := pair.SessionID + "." + strings.Repeat("x", 43)
	_, err = ts.Refresh(ctx, tampered)
	assert.ErrorIs(t, err, service.ErrRefreshFailed)
	assert.ErrorIs(t, err, storage.ErrRefreshMismatch)
}

func TestRefreshMalformedToken(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "no-separator", ".onlyverifier", "onlysession.", "a.b.c"} {
		_, err := ts.Refresh(ctx, token)
		assert.ErrorIs(t, err, service.ErrRefreshMalformed, "token %q", token)
	}
}

func TestLogoutKillsBothTokens(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	require.NoError(t, ts.Logout(ctx, pair.SessionID))

	_, err = ts.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, service.ErrTokenRevoked)

	_, err = ts.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshFailed)

	// Logging out twice is a no-op.
	require.NoError(t, ts.Logout(ctx, pair.SessionID))
}

func TestSecondLoginSupersedesFirst(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	first, err := ts.IssueTokenPair(ctx, 7, testMeta)
	require.NoError(t, err)
	second, err := ts.IssueTokenPair(ctx, 7, testMeta)
	require.NoError(t, err)

	// The newer session works end to end.
	_, err = ts.VerifyAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	_, err = ts.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)

	// The older one is dead on both credentials.
	_, err = ts.VerifyAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, service.ErrTokenRevoked)
	_, err = ts.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshFailed)
}

func TestOtherUsersUnaffectedByLogin(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	alice, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)
	_, err = ts.IssueTokenPair(ctx, 2, testMeta)
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(ctx, alice.AccessToken)
	assert.NoError(t, err)
}

func TestExpiredAccessToken(t *testing.T) {
	ts, _ := newTestTokenService(-time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, service.ErrTokenExpired)

	// The session behind it is still alive: refresh recovers.
	newAccess, err := ts.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, newAccess)
}

func TestExpiredSessionRefusesRefresh(t *testing.T) {
	ts, sessions := newTestTokenService(15*time.Minute, -time.Minute)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	_, err = ts.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshFailed)
	assert.ErrorIs(t, err, storage.ErrSessionExpired)

	// Expiry deactivates the session, so the second attempt fails as
	// invalid rather than expired.
	_, err = ts.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrSessionInvalid)

	session, err := sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.False(t, session.IsActive)
}

func TestRefreshTokenLifetimeEnforced(t *testing.T) {
	// The refresh token's window can close before the session row's
	// expires_at does.
	cfg := &util.TokenConfig{
		JwtSecretKey: []byte("test-secret-key"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   time.Nanosecond,
		SessionTTL:   time.Hour,
	}
	sessions := memory.NewSessionManager()
	ts := service.NewTokenService(cfg, sessions, nil)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	_, err = ts.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshFailed)
	assert.ErrorIs(t, err, storage.ErrSessionExpired)

	// The overrun kills the session outright.
	session, err := sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	_, err = ts.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, service.ErrTokenRevoked)
	_, err = ts.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrSessionInvalid)
}

func TestConcurrentRefreshOneTokenSurvives(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := ts.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	// Two racing refreshes for one session: both may be handed a token, but
	// the rotation is a single atomic write, so exactly one of them stays
	// verifiable afterward.
	var wg sync.WaitGroup
	tokens := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = ts.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotEqual(t, tokens[0], tokens[1])

	valid := 0
	for _, token := range tokens {
		_, err := ts.VerifyAccessToken(ctx, token)
		if err == nil {
			valid++
		} else {
			assert.ErrorIs(t, err, service.ErrTokenRevoked)
		}
	}
	assert.Equal(t, 1, valid, "exactly one of the racing tokens remains authoritative")
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ts.VerifyAccessToken(ctx, token)
		assert.ErrorIs(t, err, service.ErrTokenMalformed, "token %q", token)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	ts, _ := newTestTokenService(15*time.Minute, time.Hour)
	other, _ := newTestTokenService(15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := other.IssueTokenPair(ctx, 1, testMeta)
	require.NoError(t, err)

	// Same key here, but the session lives in the other store.
	_, err = ts.VerifyAccessToken(ctx, pair.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrTokenRevoked)
}
