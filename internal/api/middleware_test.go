package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/storage/memory"
	"github.com/shieldops/backend/internal/util"
)

func newAuthTestServer(t *testing.T) (*echo.Echo, *service.TokenService) {
	t.Helper()

	cfg := &util.TokenConfig{
		JwtSecretKey: []byte("test-secret-key"),
		AccessTTL:    15 * time.Minute,
		SessionTTL:   time.Hour,
	}
	tokens := service.NewTokenService(cfg, memory.NewSessionManager(), nil)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop().Sugar())
	e.GET("/protected", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"user_id":    c.Get(models.MwUserIDKey),
			"session_id": c.Get(models.MwSessionIDKey),
		})
	}, BearerAuthMiddleware(tokens))

	return e, tokens
}

func doRequest(e *echo.Echo, authorization, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: models.AccessTokenCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	e, tokens := newAuthTestServer(t)

	pair, err := tokens.IssueTokenPair(context.Background(), 42, models.UserMetadata{})
	require.NoError(t, err)

	rec := doRequest(e, "Bearer "+pair.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 42, body["user_id"])
	assert.Equal(t, pair.SessionID, body["session_id"])
}

func TestBearerAuthFallsBackToCookie(t *testing.T) {
	e, tokens := newAuthTestServer(t)

	pair, err := tokens.IssueTokenPair(context.Background(), 1, models.UserMetadata{})
	require.NoError(t, err)

	rec := doRequest(e, "", pair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuthRejections(t *testing.T) {
	e, tokens := newAuthTestServer(t)

	pair, err := tokens.IssueTokenPair(context.Background(), 1, models.UserMetadata{})
	require.NoError(t, err)
	require.NoError(t, tokens.Logout(context.Background(), pair.SessionID))

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing token", ""},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"revoked token", "Bearer " + pair.AccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, tt.authorization, "")
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["reason"])
		})
	}
}
