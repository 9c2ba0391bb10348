package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/aggregation"
	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/ledger"
	"github.com/jeovahfialho/perfwatch/internal/matching"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/internal/writer"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
	"github.com/jeovahfialho/perfwatch/pkg/tracing"
)

type ReconcileConfig struct {
	TradesCollection string
	PageSize         int
	RunTimeout       time.Duration
	// PeriodWindow limits period writes to months overlapping the last
	// PeriodWindow; zero rewrites every period.
	PeriodWindow     time.Duration
	Schema           ledger.Schema
	Policy           matching.OversoldPolicy
}

// ReconcileService runs one pass of fetch, normalize, match and write.
// Runs are serialized; a manual trigger waits for a scheduled run to finish.
type ReconcileService struct {
	store      store.RecordStore
	writer     *writer.Writer
	normalizer *ledger.Normalizer
	matcher    *matching.Matcher
	cfg        ReconcileConfig
	logger     *zap.Logger

	mu   sync.Mutex
	last atomic.Pointer[RunReport]
	now  func() time.Time
}

func NewReconcileService(s store.RecordStore, w *writer.Writer, cfg ReconcileConfig, log *zap.Logger) *ReconcileService {
	log = logger.OrNop(log)
	if cfg.PageSize <= 0 {
		cfg.PageSize = store.DefaultPageSize
	}

	return &ReconcileService{
		store:      s,
		writer:     w,
		normalizer: ledger.NewNormalizer(cfg.Schema, log),
		matcher:    matching.New(cfg.Policy),
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// RunOnce executes a full iteration. A failure to list the ledger ends the run
// with a *store.StoreIOError; failures writing single rows are counted in the
// report and the run continues.
func (s *ReconcileService) RunOnce(ctx context.Context) (*RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := s.logger.With(zap.String("run_id", report.RunID))

	ctx, span := tracing.StartSpan(ctx, "reconcile.run")
	span.SetAttributes(attribute.String("run.id", report.RunID))
	defer span.End()

	err := s.run(ctx, report, log)

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt).String()
	s.last.Store(report)

	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	metrics.LastSuccessfulRun.SetToCurrentTime()
	log.Info("reconciliation finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("rejected", report.Rejected),
		zap.Int("matches", report.Matches),
		zap.Int("created", report.Created()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("updated", report.Updated()),
		zap.Int("failed", report.Failed()),
		zap.String("duration", report.Duration))
	return report, nil
}

// LastReport returns the report of the most recent run, or nil. It does not
// wait for a run in progress.
func (s *ReconcileService) LastReport() *RunReport {
	return s.last.Load()
}

func (s *ReconcileService) run(ctx context.Context, report *RunReport, log *zap.Logger) error {
	records, err := s.fetch(ctx, report, log)
	if err != nil {
		return err
	}

	trades := s.normalize(ctx, records, report, log)
	matches := s.match(ctx, trades, report, log)

	if err := s.writeMatches(ctx, matches, report, log); err != nil {
		return err
	}
	return s.writePeriods(ctx, trades, matches, report, log)
}

func (s *ReconcileService) fetch(ctx context.Context, report *RunReport, log *zap.Logger) ([]store.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.fetch")
	defer span.End()

	records, err := store.ListAll(ctx, s.store, s.cfg.TradesCollection, s.cfg.PageSize, func(page int, p store.Page) {
		report.Pages = page
		log.Debug("fetched ledger page",
			zap.Int("page", page),
			zap.Int("records", len(p.Records)),
			zap.Bool("has_more", p.HasMore))
	})
	if err != nil {
		var ioErr *store.StoreIOError
		if !errors.As(err, &ioErr) {
			err = &store.StoreIOError{Op: store.OpList, Collection: s.cfg.TradesCollection, Err: err}
		}
		span.RecordError(err)
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}

	report.Fetched = len(records)
	metrics.RecordsFetched.Add(float64(len(records)))
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

func (s *ReconcileService) normalize(ctx context.Context, records []store.Record, report *RunReport, log *zap.Logger) []domain.TradeRecord {
	_, span := tracing.StartSpan(ctx, "reconcile.normalize")
	defer span.End()

	result := s.normalizer.NormalizeAll(records, logger.NewOnce(log))

	report.Valid = len(result.Trades)
	report.Rejected = len(result.Rejections)
	span.SetAttributes(
		attribute.Int("valid", report.Valid),
		attribute.Int("rejected", report.Rejected))
	return result.Trades
}

func (s *ReconcileService) match(ctx context.Context, trades []domain.TradeRecord, report *RunReport, log *zap.Logger) []domain.RealizedMatch {
	_, span := tracing.StartSpan(ctx, "reconcile.match")
	defer span.End()

	groups := matching.GroupBySymbol(trades)
	report.Symbols = matching.Symbols(groups)
	policy := s.matcher.Policy().String()

	var matches []domain.RealizedMatch
	for _, symbol := range report.Symbols {
		result, err := s.matcher.Match(symbol, groups[symbol])

		var oversold *matching.OversoldError
		if errors.As(err, &oversold) {
			metrics.OversoldSells.WithLabelValues(policy).Inc()
			log.Warn("sell exceeds open lots, halting symbol",
				zap.String("symbol", symbol),
				zap.String("sell_trade_id", oversold.SellTradeID),
				zap.String("unmatched", oversold.Unmatched.String()))
			report.OversoldSymbols = append(report.OversoldSymbols, symbol)
			report.Unmatched = append(report.Unmatched, matching.Unmatched{
				TradeID:  oversold.SellTradeID,
				Date:     oversold.SellDate,
				Quantity: oversold.Unmatched,
			})
		}

		if len(result.Unmatched) > 0 {
			for _, u := range result.Unmatched {
				metrics.OversoldSells.WithLabelValues(policy).Inc()
				log.Warn("sell exceeds open lots",
					zap.String("symbol", symbol),
					zap.String("sell_trade_id", u.TradeID),
					zap.String("unmatched", u.Quantity.String()))
			}
			report.OversoldSymbols = append(report.OversoldSymbols, symbol)
			report.Unmatched = append(report.Unmatched, result.Unmatched...)
		}

		for _, m := range result.Matches {
			log.Debug("matched lot",
				zap.String("symbol", symbol),
				zap.String("buy_date", m.BuyDate.Format(domain.DateLayout)),
				zap.String("sell_date", m.SellDate.Format(domain.DateLayout)),
				zap.String("quantity", m.Quantity.String()),
				zap.String("pnl", m.PnL.String()),
				zap.Int("holding_days", m.HoldingDays))
		}
		matches = append(matches, result.Matches...)
	}

	report.Matches = len(matches)
	metrics.MatchesEmitted.Add(float64(len(matches)))
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches
}

func (s *ReconcileService) writeMatches(ctx context.Context, matches []domain.RealizedMatch, report *RunReport, log *zap.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.write_matches")
	defer span.End()

	for _, m := range matches {
		outcome, err := s.writer.WriteMatch(ctx, m)
		report.MatchWrites.Add(outcome)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("failed to write match",
				zap.String("symbol", m.Symbol),
				zap.String("sell_date", m.SellDate.Format(domain.DateLayout)),
				zap.Error(err))
		}
	}
	return nil
}

func (s *ReconcileService) writePeriods(ctx context.Context, trades []domain.TradeRecord, matches []domain.RealizedMatch, report *RunReport, log *zap.Logger) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.write_periods")
	defer span.End()

	var periods []domain.PeriodPerformance
	if s.cfg.PeriodWindow > 0 {
		periods = aggregation.AggregateSince(trades, matches, s.now().Add(-s.cfg.PeriodWindow))
	} else {
		periods = aggregation.Aggregate(trades, matches)
	}
	report.Periods = len(periods)

	for _, p := range periods {
		outcome, err := s.writer.WritePeriod(ctx, p)
		report.PeriodWrites.Add(outcome)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("failed to write period",
				zap.String("period", p.Period),
				zap.Error(err))
		}
	}
	return nil
}
