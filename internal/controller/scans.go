package controller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/util"
)

// (POST /api/v1/scans). Runs the scan synchronously and returns the stored
// result. An engine failure still yields 201 with a failed scan row.
func (c *Controller) CreateScan(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var req models.ScanCreateRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}
	if req.WebsiteID <= 0 {
		return util.NewResponseError(http.StatusBadRequest, "website_id is required")
	}

	scan, err := c.scans.RunScan(ctx.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, scan)
}

// (GET /api/v1/scans).
func (c *Controller) ListScans(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	scans, err := c.scans.ListScans(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scans)
}

// (GET /api/v1/scans/{id}).
func (c *Controller) GetScan(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	scanID, err := pathID(ctx)
	if err != nil {
		return err
	}

	scan, err := c.scans.GetScan(ctx.Request().Context(), userID, scanID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scan)
}

// (GET /api/v1/issues). Optional ?status=open|resolved|ignored filter.
func (c *Controller) ListIssues(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	status := ctx.QueryParam("status")
	switch status {
	case "", models.IssueStatusOpen, models.IssueStatusResolved, models.IssueStatusIgnored:
	default:
		return util.NewResponseError(http.StatusBadRequest, "invalid status filter")
	}

	issues, err := c.scans.ListIssues(ctx.Request().Context(), userID, status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, issues)
}

// (PUT /api/v1/issues/{id}). Transitions the issue to open, resolved or
// ignored; this is how resolved/ignored states come to exist.
func (c *Controller) UpdateIssue(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	issueID, err := pathID(ctx)
	if err != nil {
		return err
	}

	var req models.IssueUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	issue, err := c.scans.UpdateIssue(ctx.Request().Context(), userID, issueID, req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, issue)
}

// (GET /api/v1/scans/latest/{website_id}).
func (c *Controller) LatestScan(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	websiteID, err := strconv.ParseInt(ctx.Param("website_id"), 10, 64)
	if err != nil || websiteID <= 0 {
		return util.NewResponseError(http.StatusBadRequest, "invalid website_id")
	}

	scan, err := c.scans.LatestScan(ctx.Request().Context(), userID, websiteID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scan)
}

// (GET /api/v1/summary).
func (c *Controller) Summary(ctx echo.Context) error {
	userID, ok := ctx.Get(models.MwUserIDKey).(int64)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	summary, err := c.scans.Summary(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

// (GET /api/v1/landing-page-data). Public.
func (c *Controller) LandingPageData(ctx echo.Context) error {
	data, err := c.scans.LandingPageData(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, data)
}
