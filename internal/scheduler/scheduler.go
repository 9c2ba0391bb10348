// Package scheduler runs a task immediately and then on every tick until stopped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/pkg/logger"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

// Task is one iteration of periodic work.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc is a function adapter for Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker for an interval.
type TickerFunc func(interval time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(interval time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(interval)}
}

type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 60 * time.Second}
}

type Option func(*Scheduler)

// WithTicker replaces the wall-clock ticker, mainly for tests.
func WithTicker(f TickerFunc) Option {
	return func(s *Scheduler) {
		s.newTicker = f
	}
}

type Scheduler struct {
	cfg       Config
	task      Task
	newTicker TickerFunc
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, task Task, log *zap.Logger, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	s := &Scheduler{
		cfg:       cfg,
		task:      task,
		newTicker: NewTimeTicker,
		logger:    logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks, executing the task now and on every tick, until ctx is
// cancelled or Stop is called. Iteration failures never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	ticker := s.newTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))

	s.iterate(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C():
			s.iterate(ctx)
		}
	}
}

// Start runs the loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the running iteration, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) iterate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	timer := metrics.NewTimer()
	err := s.safeRun(ctx)
	elapsed := timer.Elapsed()

	switch {
	case err == nil:
		metrics.RecordIteration("success", elapsed)
	case ctx.Err() != nil:
		metrics.RecordIteration("cancelled", elapsed)
		s.logger.Info("iteration interrupted by shutdown", zap.Error(err))
	default:
		metrics.RecordIteration("error", elapsed)
		s.logger.Error("iteration failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	}
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.task.Run(ctx)
}
