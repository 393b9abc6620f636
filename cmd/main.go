package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/api"
	"github.com/shieldops/backend/internal/controller"
	"github.com/shieldops/backend/internal/migrations"
	"github.com/shieldops/backend/internal/scanner"
	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/storage/postgres"
	"github.com/shieldops/backend/internal/storage/redis"
	"github.com/shieldops/backend/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	storage := postgres.NewStorage(db)
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	tokenConfig := util.NewTokenConfig()
	sessionCache := redis.NewSessionCache(redisClient, tokenConfig.VerifyCacheTTL)
	tokenService := service.NewTokenService(tokenConfig, storage, sessionCache)
	authService := service.NewAuthService(storage, tokenService, service.NewBcryptHasher(), logger)

	engine := scanner.NewEngineClient(util.NewScannerConfig())
	alertService := service.NewAlertService(logger, util.GetAlertWebhookURL())
	scanService := service.NewScanService(storage, storage, engine, alertService, logger)

	websiteController := controller.NewWebsiteController(storage, logger)
	ctrl := controller.NewController(authService, tokenService, scanService, websiteController, logger)

	apiServer := api.NewAPI(ctrl, tokenService, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
