package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/api"
	"github.com/jeovahfialho/perfwatch/internal/config"
	"github.com/jeovahfialho/perfwatch/internal/service"
	"github.com/jeovahfialho/perfwatch/internal/storage"
	"github.com/jeovahfialho/perfwatch/internal/storage/cache"
	"github.com/jeovahfialho/perfwatch/internal/writer"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
)

// @title perfwatch query API
// @version 1.0
// @description Realized trade matches and monthly performance

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "perfwatch-api:", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment == "development"); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Close()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer closeStore()

	var (
		queryCache service.Cache
		cacheCheck api.HealthChecker
	)
	if redisCache := connectRedis(cfg, log); redisCache != nil {
		defer redisCache.Close()
		queryCache, cacheCheck = redisCache, redisCache
	}

	cols := writer.Collections{
		Matches: cfg.MatchesCollection,
		Periods: cfg.PerformanceCollection,
	}
	queries := service.NewQueryService(records, cols, cfg.PageSize, queryCache, cfg.CacheTTL, log)

	app := api.NewApp(cfg, "perfwatch api "+api.Version)
	api.SetupRoutes(app, api.NewHandler(records, cacheCheck, queries, nil, nil), api.RouteConfig{
		MetricsEnabled: cfg.MetricsEnabled,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("starting server", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		log.Error("server error", zap.Error(err))
	}
}

func connectRedis(cfg *config.Config, log *zap.Logger) *cache.RedisCache {
	if cfg.RedisURL == "" {
		return nil
	}

	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Warn("redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}

	log.Info("connected to redis")
	return redisCache
}
