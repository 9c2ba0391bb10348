// Package writer persists realized matches and period rows without duplicating them.
package writer

import (
	"context"

	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	// OutcomeSkipped means an identical row already exists.
	OutcomeSkipped Outcome = "skipped"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
)

const (
	entityMatch  = "match"
	entityPeriod = "period"
)

// SeenCache remembers natural keys that were persisted. A hit is only a hint:
// the store lookup still decides, and a stale hit is dropped.
type SeenCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
	Forget(ctx context.Context, key string) error
}

type Collections struct {
	Matches string
	Periods string
}

// Stats counts write outcomes.
type Stats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

func (s *Stats) Add(o Outcome) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeFailed:
		s.Failed++
	}
}

type Writer struct {
	store  store.RecordStore
	cols   Collections
	cache  SeenCache
	logger *zap.Logger
}

// New builds a Writer. cache may be nil.
func New(s store.RecordStore, cols Collections, cache SeenCache, log *zap.Logger) *Writer {
	return &Writer{
		store:  s,
		cols:   cols,
		cache:  cache,
		logger: logger.OrNop(log),
	}
}

// WriteMatch creates the match unless a row with the same natural key exists.
func (w *Writer) WriteMatch(ctx context.Context, m domain.RealizedMatch) (Outcome, error) {
	key := matchCacheKey(m)
	hinted := w.seen(ctx, key)

	existing, err := w.store.FindOne(ctx, w.cols.Matches, MatchKey(m))
	if err != nil {
		return w.record(entityMatch, OutcomeFailed), err
	}
	if existing != nil {
		w.logger.Debug("match already persisted",
			zap.String("key", key),
			zap.String("record_id", existing.ID))
		if !hinted {
			w.mark(ctx, key)
		}
		return w.record(entityMatch, OutcomeSkipped), nil
	}
	if hinted {
		w.logger.Warn("dedup cache entry is stale, recreating match", zap.String("key", key))
		w.forget(ctx, key)
	}

	id, err := w.store.Create(ctx, w.cols.Matches, MatchFields(m))
	if err != nil {
		return w.record(entityMatch, OutcomeFailed), err
	}

	w.logger.Debug("match created",
		zap.String("key", key),
		zap.String("record_id", id),
		zap.String("pnl", m.PnL.String()))
	w.mark(ctx, key)
	return w.record(entityMatch, OutcomeCreated), nil
}

// WritePeriod replaces the row of the period: created when absent, skipped
// when identical, updated otherwise.
func (w *Writer) WritePeriod(ctx context.Context, p domain.PeriodPerformance) (Outcome, error) {
	fields := PeriodFields(p)

	existing, err := w.store.FindOne(ctx, w.cols.Periods, PeriodKey(p))
	if err != nil {
		return w.record(entityPeriod, OutcomeFailed), err
	}

	if existing == nil {
		id, err := w.store.Create(ctx, w.cols.Periods, fields)
		if err != nil {
			return w.record(entityPeriod, OutcomeFailed), err
		}
		w.logger.Debug("period created", zap.String("period", p.Period), zap.String("record_id", id))
		return w.record(entityPeriod, OutcomeCreated), nil
	}

	if store.Matches(existing.Fields, store.Criteria(fields)) {
		w.logger.Debug("period unchanged", zap.String("period", p.Period))
		return w.record(entityPeriod, OutcomeSkipped), nil
	}

	if err := w.store.Update(ctx, w.cols.Periods, existing.ID, fields); err != nil {
		return w.record(entityPeriod, OutcomeFailed), err
	}
	w.logger.Debug("period updated", zap.String("period", p.Period), zap.String("record_id", existing.ID))
	return w.record(entityPeriod, OutcomeUpdated), nil
}

func (w *Writer) record(entity string, o Outcome) Outcome {
	metrics.RecordWrite(entity, string(o))
	return o
}

func (w *Writer) seen(ctx context.Context, key string) bool {
	if w.cache == nil {
		return false
	}
	ok, err := w.cache.Seen(ctx, key)
	if err != nil {
		w.logger.Warn("dedup cache unavailable", zap.Error(err))
		metrics.RecordCacheMiss("dedup")
		return false
	}
	if ok {
		metrics.RecordCacheHit("dedup")
	} else {
		metrics.RecordCacheMiss("dedup")
	}
	return ok
}

func (w *Writer) mark(ctx context.Context, key string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.Mark(ctx, key); err != nil {
		w.logger.Warn("failed to mark dedup key", zap.Error(err))
	}
}

func (w *Writer) forget(ctx context.Context, key string) {
	if err := w.cache.Forget(ctx, key); err != nil {
		w.logger.Warn("failed to drop stale dedup key", zap.Error(err))
	}
}
