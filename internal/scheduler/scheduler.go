// Package scheduler runs refresh cycles periodically and on demand, one at
// a time.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/metrics"
)

// State is the scheduler's lifecycle state.
type State int32

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// CycleFunc performs one refresh cycle. It must return once the cycle has
// settled.
type CycleFunc func(ctx context.Context)

// Scheduler owns the refresh loop. Cycles run only on the goroutine that
// called Run, so two cycles never overlap.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	logger   *zap.Logger
	metrics  *metrics.Metrics

	state   atomic.Int32
	pending chan struct{}
}

// New creates a Scheduler. m may be nil.
func New(interval time.Duration, cycle CycleFunc, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		interval: interval,
		cycle:    cycle,
		logger:   logger,
		metrics:  m,
		pending:  make(chan struct{}, 1),
	}
}

// Run executes one cycle immediately and then one per interval tick or
// forced refresh until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("refresh scheduler started", zap.Duration("interval", s.interval))
	s.runCycle(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return nil
		case <-ticker.C:
			s.runCycle(ctx, "tick")
		case <-s.pending:
			s.runCycle(ctx, "forced")
		}
	}
}

// Refresh requests a cycle without blocking. A request made while a cycle
// is in flight runs as one fresh cycle right after it; further requests
// made meanwhile coalesce into that same cycle.
func (s *Scheduler) Refresh() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// State reports whether a cycle is in flight.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) runCycle(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	// Requests made before this point are served by this cycle.
	select {
	case <-s.pending:
	default:
	}

	s.state.Store(int32(Refreshing))
	s.metrics.SetRefreshing(true)
	defer func() {
		s.state.Store(int32(Idle))
		s.metrics.SetRefreshing(false)
	}()

	s.logger.Debug("refresh cycle starting", zap.String("trigger", trigger))
	s.cycle(ctx)
}
