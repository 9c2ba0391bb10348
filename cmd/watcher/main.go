package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/api"
	"github.com/jeovahfialho/perfwatch/internal/config"
	"github.com/jeovahfialho/perfwatch/internal/ledger"
	"github.com/jeovahfialho/perfwatch/internal/matching"
	"github.com/jeovahfialho/perfwatch/internal/scheduler"
	"github.com/jeovahfialho/perfwatch/internal/service"
	"github.com/jeovahfialho/perfwatch/internal/storage"
	"github.com/jeovahfialho/perfwatch/internal/storage/cache"
	"github.com/jeovahfialho/perfwatch/internal/writer"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/tracing"
)

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "perfwatch",
		Short: "Trade ledger performance watcher",
		Long: `Polls the trade ledger, matches sells against earlier buys (FIFO),
and keeps realized matches and monthly performance rows up to date.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), debug)
		},
	}
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Log every fetch, parse, match and write decision")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "perfwatch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	if err := logger.Init(level, cfg.Environment == "development"); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log := logger.Log

	if err := tracing.Init(cfg.TracingEnabled, "perfwatch", api.Version); err != nil {
		log.Warn("tracing unavailable, continuing without spans", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	policy, err := matching.ParseOversoldPolicy(cfg.OversoldPolicy)
	if err != nil {
		return &config.FatalConfigError{Problems: []string{err.Error()}}
	}

	records, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		seen       writer.SeenCache
		queryCache service.Cache
		cacheCheck api.HealthChecker
	)
	if redisCache := connectRedis(cfg, log); redisCache != nil {
		defer redisCache.Close()
		seen, queryCache, cacheCheck = redisCache, redisCache, redisCache
	}

	cols := writer.Collections{
		Matches: cfg.MatchesCollection,
		Periods: cfg.PerformanceCollection,
	}
	reconciler := service.NewReconcileService(records, writer.New(records, cols, seen, log), service.ReconcileConfig{
		TradesCollection: cfg.TradesCollection,
		PageSize:         cfg.PageSize,
		RunTimeout:       cfg.RunTimeout,
		PeriodWindow:     cfg.PeriodWindow,
		Schema:           ledger.DefaultSchema(),
		Policy:           policy,
	}, log)
	queries := service.NewQueryService(records, cols, cfg.PageSize, queryCache, cfg.CacheTTL, log)

	invalidate := func(ctx context.Context, _ *service.RunReport) {
		queries.Invalidate(ctx)
	}

	app := api.NewApp(cfg, "perfwatch watcher "+api.Version)
	api.SetupRoutes(app, api.NewHandler(records, cacheCheck, queries, reconciler, invalidate), api.RouteConfig{
		MetricsEnabled: cfg.MetricsEnabled,
		AdminUser:      cfg.AdminUser,
		AdminPassword:  cfg.AdminPassword,
	})

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	go func() {
		log.Info("ops server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Error("ops server stopped", zap.Error(err))
		}
	}()
	defer func() {
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warn("ops server shutdown", zap.Error(err))
		}
	}()

	task := scheduler.TaskFunc(func(ctx context.Context) error {
		report, err := reconciler.RunOnce(ctx)
		if err != nil {
			return err
		}
		if report.Changed() {
			queries.Invalidate(ctx)
		}
		return nil
	})

	sched := scheduler.New(scheduler.Config{Interval: cfg.PollInterval}, task, log)
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutting down")
	return nil
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
