package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/service"
)

type Controller struct {
	auth   *service.AuthService
	tokens *service.TokenService
	scans  *service.ScanService
	sites  *WebsiteController
	log    *zap.SugaredLogger
}

func NewController(auth *service.AuthService, tokens *service.TokenService, scans *service.ScanService, sites *WebsiteController, log *zap.SugaredLogger) *Controller {
	return &Controller{
		auth:   auth,
		tokens: tokens,
		scans:  scans,
		sites:  sites,
		log:    log,
	}
}

// RegisterHandlers wires all routes onto the group. authMw guards every
// endpoint that needs a valid access token; /auth/login, /auth/refresh,
// /auth/signup and /landing-page-data stay public.
func RegisterHandlers(g *echo.Group, c *Controller, authMw echo.MiddlewareFunc) {
	g.GET("/ping", c.CheckServer)

	g.POST("/auth/signup", c.Signup)
	g.POST("/auth/login", c.Login)
	g.POST("/auth/refresh", c.Refresh)
	g.POST("/auth/logout", c.Logout, authMw)
	g.GET("/auth/me", c.Me, authMw)

	g.GET("/landing-page-data", c.LandingPageData)

	g.POST("/websites", c.sites.Create, authMw)
	g.GET("/websites", c.sites.List, authMw)
	g.GET("/websites/:id", c.sites.Get, authMw)
	g.PATCH("/websites/:id", c.sites.Update, authMw)
	g.DELETE("/websites/:id", c.sites.Delete, authMw)

	g.POST("/scans", c.CreateScan, authMw)
	g.GET("/scans", c.ListScans, authMw)
	g.GET("/scans/latest/:website_id", c.LatestScan, authMw)
	g.GET("/scans/:id", c.GetScan, authMw)
	g.GET("/issues", c.ListIssues, authMw)
	g.PUT("/issues/:id", c.UpdateIssue, authMw)
	g.GET("/summary", c.Summary, authMw)
}

// (GET /api/v1/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}
