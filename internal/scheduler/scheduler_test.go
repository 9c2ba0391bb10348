package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// manualTicker only ticks when the test sends on ch.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func (m *manualTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return m }
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	ticker := newManualTicker()
	var runs atomic.Int32
	task := TaskFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s := New(Config{Interval: time.Hour}, task, nil, WithTicker(ticker.factory()))
	s.Start(context.Background())

	waitFor(t, func() bool { return runs.Load() == 1 })

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	waitFor(t, func() bool { return runs.Load() == 3 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !ticker.stopped.Load() {
		t.Error("ticker was not stopped")
	}
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	ticker := newManualTicker()
	var runs atomic.Int32
	task := TaskFunc(func(context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("store unavailable")
		case 2:
			panic("unexpected nil")
		default:
			return nil
		}
	})

	s := New(Config{Interval: time.Hour}, task, nil, WithTicker(ticker.factory()))
	s.Start(context.Background())

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	waitFor(t, func() bool { return runs.Load() == 3 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestSchedulerRunReturnsOnCancel(t *testing.T) {
	ticker := newManualTicker()
	ctx, cancel := context.WithCancel(context.Background())

	task := TaskFunc(func(context.Context) error {
		cancel()
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- New(Config{Interval: time.Hour}, task, nil, WithTicker(ticker.factory())).Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStopDeadline(t *testing.T) {
	ticker := newManualTicker()
	release := make(chan struct{})
	started := make(chan struct{})
	task := TaskFunc(func(context.Context) error {
		close(started)
		<-release
		return nil
	})

	s := New(Config{Interval: time.Hour}, task, nil, WithTicker(ticker.factory()))
	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want deadline exceeded", err)
	}

	close(release)
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(Config{}, TaskFunc(func(context.Context) error { return nil }), nil)
	if s.cfg.Interval != 60*time.Second {
		t.Errorf("Interval = %v, want 60s", s.cfg.Interval)
	}
}
