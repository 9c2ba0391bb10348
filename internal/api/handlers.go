package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/service"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
)

const Version = "1.0.0"

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Queries interface {
	ListPeriods(ctx context.Context) ([]domain.PeriodPerformance, error)
	ListMatches(ctx context.Context, filter domain.MatchFilter) ([]domain.RealizedMatch, error)
}

// Runner triggers reconciliation runs; only the watcher process has one.
type Runner interface {
	RunOnce(ctx context.Context) (*service.RunReport, error)
	LastReport() *service.RunReport
}

// AfterRun is called after a manual run that changed the store.
type AfterRun func(ctx context.Context, report *service.RunReport)

type Handler struct {
	store    Pinger
	cache    HealthChecker
	queries  Queries
	runner   Runner
	afterRun AfterRun
}

// NewHandler builds the handler set. cache, runner and afterRun may be nil.
func NewHandler(store Pinger, cache HealthChecker, queries Queries, runner Runner, afterRun AfterRun) *Handler {
	return &Handler{
		store:    store,
		cache:    cache,
		queries:  queries,
		runner:   runner,
		afterRun: afterRun,
	}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := map[string]ServiceHealth{
		"store": probe(ctx, h.store.Ping),
	}
	if h.cache != nil {
		services["redis"] = probe(ctx, h.cache.HealthCheck)
	}

	status := "ready"
	for _, s := range services {
		if s.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

func probe(ctx context.Context, check func(context.Context) error) ServiceHealth {
	start := time.Now()
	if err := check(ctx); err != nil {
		return ServiceHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *Handler) ListPerformance(c *fiber.Ctx) error {
	ctx := c.UserContext()

	periods, err := h.queries.ListPeriods(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("failed to list period performance", zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "failed to list period performance")
	}

	return c.JSON(PerformanceResponse{
		Periods: periods,
		Count:   len(periods),
	})
}

func (h *Handler) ListMatches(c *fiber.Ctx) error {
	ctx := c.UserContext()
	symbol := domain.NormalizeSymbol(c.Query("symbol"))

	matches, err := h.queries.ListMatches(ctx, domain.MatchFilter{Symbol: symbol})
	if err != nil {
		logger.WithContext(ctx).Error("failed to list realized matches",
			zap.String("symbol", symbol),
			zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "failed to list realized matches")
	}

	return c.JSON(MatchesResponse{
		Symbol:  symbol,
		Matches: matches,
		Count:   len(matches),
	})
}

func (h *Handler) TriggerRun(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := logger.WithContext(ctx)

	log.Info("manual reconciliation requested")

	report, err := h.runner.RunOnce(ctx)
	if err != nil {
		log.Error("manual reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(RunResponse{
			Status: "failed",
			Report: report,
		})
	}

	if h.afterRun != nil && report.Changed() {
		h.afterRun(ctx, report)
	}

	return c.JSON(RunResponse{
		Status: "completed",
		Report: report,
	})
}

func (h *Handler) LastRun(c *fiber.Ctx) error {
	report := h.runner.LastReport()
	if report == nil {
		return h.fail(c, fiber.StatusNotFound, "no reconciliation has run yet")
	}

	status := "completed"
	if report.Error != "" {
		status = "failed"
	}
	return c.JSON(RunResponse{Status: status, Report: report})
}

func (h *Handler) fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}
