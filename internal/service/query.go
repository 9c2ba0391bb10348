package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/internal/writer"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

const (
	performanceCacheKey = "perfwatch:performance"
	cacheKeyPattern     = "perfwatch:performance*"
)

// Cache is the read-through cache used for query results.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// QueryService reads persisted matches and period rows back out of the store.
type QueryService struct {
	store    store.RecordStore
	cols     writer.Collections
	pageSize int
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewQueryService builds a QueryService. cache may be nil.
func NewQueryService(s store.RecordStore, cols writer.Collections, pageSize int, cache Cache, cacheTTL time.Duration, log *zap.Logger) *QueryService {
	return &QueryService{
		store:    s,
		cols:     cols,
		pageSize: pageSize,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.OrNop(log),
	}
}

func (s *QueryService) ListPeriods(ctx context.Context) ([]domain.PeriodPerformance, error) {
	var cached []domain.PeriodPerformance
	if s.getFromCache(ctx, performanceCacheKey, &cached) {
		return cached, nil
	}

	records, err := store.ListAll(ctx, s.store, s.cols.Periods, s.pageSize, nil)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}

	periods := make([]domain.PeriodPerformance, 0, len(records))
	for _, rec := range records {
		p, err := writer.DecodePeriod(rec)
		if err != nil {
			s.logger.Warn("skipping unreadable period row", zap.Error(err))
			continue
		}
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Period < periods[j].Period
	})

	s.saveToCache(ctx, performanceCacheKey, periods)
	return periods, nil
}

func (s *QueryService) ListMatches(ctx context.Context, filter domain.MatchFilter) ([]domain.RealizedMatch, error) {
	records, err := store.ListAll(ctx, s.store, s.cols.Matches, s.pageSize, nil)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	symbol := domain.NormalizeSymbol(filter.Symbol)
	matches := make([]domain.RealizedMatch, 0, len(records))
	for _, rec := range records {
		m, err := writer.DecodeMatch(rec)
		if err != nil {
			s.logger.Warn("skipping unreadable match row", zap.Error(err))
			continue
		}
		if symbol != "" && m.Symbol != symbol {
			continue
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.SellDate.Equal(b.SellDate) {
			return a.SellDate.Before(b.SellDate)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.BuyDate.Before(b.BuyDate)
	})

	return matches, nil
}

// Invalidate drops cached query results after a run changed the store.
func (s *QueryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, cacheKeyPattern); err != nil {
		s.logger.Warn("failed to invalidate query cache", zap.Error(err))
	}
}

func (s *QueryService) getFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, dest); err != nil {
		metrics.RecordCacheMiss("query")
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("query cache miss", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	metrics.RecordCacheHit("query")
	return true
}

func (s *QueryService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	var ttl []time.Duration
	if s.cacheTTL > 0 {
		ttl = append(ttl, s.cacheTTL)
	}
	if err := s.cache.Set(ctx, key, value, ttl...); err != nil {
		s.logger.Warn("failed to cache query result", zap.String("key", key), zap.Error(err))
	}
}
