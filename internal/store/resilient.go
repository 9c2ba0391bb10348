package store

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

type ResilientConfig struct {
	MaxRetries int           // retries after the first attempt, reads only
	RetryBase  time.Duration // first backoff, doubled per retry
	RetryMax   time.Duration // cap for a single backoff
	RateLimit  float64       // requests per second, 0 disables limiting
	RateBurst  int
}

func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxRetries: 3,
		RetryBase:  500 * time.Millisecond,
		RetryMax:   10 * time.Second,
		RateBurst:  1,
	}
}

// Resilient decorates a RecordStore with rate limiting, bounded retries and
// timing metrics. Reads (List, FindOne, Ping) are retried; writes are attempted
// once since a lost response could otherwise produce a second row.
// Every failure leaves as a *StoreIOError.
type Resilient struct {
	next    RecordStore
	cfg     ResilientConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewResilient(next RecordStore, cfg ResilientConfig, log *zap.Logger) *Resilient {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	r := &Resilient{
		next:   next,
		cfg:    cfg,
		logger: logger.OrNop(log),
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return r
}

func (r *Resilient) List(ctx context.Context, collection, cursor string, pageSize int) (Page, error) {
	var page Page
	err := r.do(ctx, OpList, collection, true, func(ctx context.Context) error {
		var err error
		page, err = r.next.List(ctx, collection, cursor, pageSize)
		return err
	})
	return page, err
}

func (r *Resilient) FindOne(ctx context.Context, collection string, criteria Criteria) (*Record, error) {
	var rec *Record
	err := r.do(ctx, OpFindOne, collection, true, func(ctx context.Context) error {
		var err error
		rec, err = r.next.FindOne(ctx, collection, criteria)
		return err
	})
	return rec, err
}

func (r *Resilient) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	var id string
	err := r.do(ctx, OpCreate, collection, false, func(ctx context.Context) error {
		var err error
		id, err = r.next.Create(ctx, collection, fields)
		return err
	})
	return id, err
}

func (r *Resilient) Update(ctx context.Context, collection, id string, fields Fields) error {
	return r.do(ctx, OpUpdate, collection, false, func(ctx context.Context) error {
		return r.next.Update(ctx, collection, id, fields)
	})
}

func (r *Resilient) Ping(ctx context.Context) error {
	return r.do(ctx, OpPing, "", true, r.next.Ping)
}

func (r *Resilient) do(ctx context.Context, op Op, collection string, idempotent bool, fn func(context.Context) error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreOperationDuration.WithLabelValues(string(op)))

	retries := uint64(0)
	if idempotent {
		retries = uint64(r.cfg.MaxRetries)
	}
	backoff := retry.NewExponential(r.cfg.RetryBase)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithCappedDuration(r.cfg.RetryMax, backoff)
	backoff = retry.WithMaxRetries(retries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil || !retryable(ctx, err) {
			return err
		}

		r.logger.Debug("store operation failed, retrying",
			zap.String("operation", string(op)),
			zap.String("collection", collection),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})

	if err != nil {
		metrics.RecordStoreOperation(string(op), "error")
		var ioErr *StoreIOError
		if errors.As(err, &ioErr) {
			return err
		}
		return &StoreIOError{Op: op, Collection: collection, Err: err}
	}

	metrics.RecordStoreOperation(string(op), "success")
	return nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrNotFound)
}
