package controller

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
	"github.com/shieldops/backend/internal/util"
)

// WebsiteController owns the monitored-website CRUD. Every operation is
// scoped to the authenticated user; cross-user access reads as not found.
type WebsiteController struct {
	websites storage.WebsiteRepository
	log      *zap.SugaredLogger
}

func NewWebsiteController(websites storage.WebsiteRepository, log *zap.SugaredLogger) *WebsiteController {
	return &WebsiteController{websites: websites, log: log}
}

// (POST /api/v1/websites).
func (w *WebsiteController) Create(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var req models.WebsiteCreateRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateWebsiteURL(req.URL); err != nil {
		return err
	}

	website, err := w.websites.CreateWebsite(ctx.Request().Context(), models.Website{
		UserID:      userID,
		URL:         req.URL,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, website)
}

// (GET /api/v1/websites).
func (w *WebsiteController) List(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	websites, err := w.websites.ListWebsites(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, websites)
}

// (GET /api/v1/websites/{id}).
func (w *WebsiteController) Get(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	websiteID, err := pathID(ctx)
	if err != nil {
		return err
	}

	website, err := w.websites.GetWebsite(ctx.Request().Context(), userID, websiteID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, website)
}

// (PATCH /api/v1/websites/{id}). Partial update: absent fields keep their
// current values.
func (w *WebsiteController) Update(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	websiteID, err := pathID(ctx)
	if err != nil {
		return err
	}

	var req models.WebsiteUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	website, err := w.websites.GetWebsite(ctx.Request().Context(), userID, websiteID)
	if err != nil {
		return err
	}
	if req.Name != nil {
		website.Name = *req.Name
	}
	if req.Description != nil {
		website.Description = *req.Description
	}
	if req.IsActive != nil {
		website.IsActive = *req.IsActive
	}

	if err := w.websites.UpdateWebsite(ctx.Request().Context(), *website); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, website)
}

// (DELETE /api/v1/websites/{id}).
func (w *WebsiteController) Delete(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	websiteID, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := w.websites.DeleteWebsite(ctx.Request().Context(), userID, websiteID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, util.NewResponseError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func validateWebsiteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return util.NewResponseError(http.StatusBadRequest, "url must be absolute http(s)")
	}
	return nil
}
