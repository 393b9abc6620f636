package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/util"
)

// (POST /api/v1/auth/signup).
func (c *Controller) Signup(ctx echo.Context) error {
	var req models.SignupRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, err := c.auth.Signup(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, user)
}

// (POST /api/v1/auth/login). A successful login supersedes any prior active
// session for the user. Tokens are returned in the body and mirrored as
// cookies for the server-rendered fallback.
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	meta := models.UserMetadata{
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}

	resp, err := c.auth.Login(ctx.Request().Context(), req, meta)
	if err != nil {
		return err
	}

	setTokenCookie(ctx, models.AccessTokenCookie, resp.AccessToken, time.Duration(resp.ExpiresIn)*time.Second)
	setTokenCookie(ctx, models.RefreshTokenCookie, resp.RefreshToken, 0)

	return ctx.JSON(http.StatusOK, resp)
}

// (POST /api/v1/auth/refresh). Public: the caller's access token is expired
// by definition. Fails with 401 whenever the session is invalid, expired or
// superseded; clients treat all of those as one "refresh failed" outcome.
func (c *Controller) Refresh(ctx echo.Context) error {
	var req models.RefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		if cookie, err := ctx.Cookie(models.RefreshTokenCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		return service.ErrRefreshMalformed
	}

	accessToken, err := c.tokens.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	setTokenCookie(ctx, models.AccessTokenCookie, accessToken, c.tokens.AccessTTL())

	return ctx.JSON(http.StatusOK, models.RefreshResponse{AccessToken: accessToken})
}

// (POST /api/v1/auth/logout). Idempotent.
func (c *Controller) Logout(ctx echo.Context) error {
	sessionID, ok := ctx.Get(models.MwSessionIDKey).(string)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}

	if err := c.tokens.Logout(ctx.Request().Context(), sessionID); err != nil {
		return err
	}

	clearTokenCookie(ctx, models.AccessTokenCookie)
	clearTokenCookie(ctx, models.RefreshTokenCookie)

	return ctx.NoContent(http.StatusNoContent)
}

// (GET /api/v1/auth/me).
func (c *Controller) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	user, err := c.auth.GetUser(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

func setTokenCookie(ctx echo.Context, name, value string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
	}
	ctx.SetCookie(cookie)
}

func clearTokenCookie(ctx echo.Context, name string) {
	ctx.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
