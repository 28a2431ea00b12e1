// Package refresh fans out the detector fetches of one refresh cycle and
// joins their individually fallible results into an Outcome.
package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/metrics"
)

// Source is the read side of the detector API.
type Source interface {
	Status(ctx context.Context) (detector.Status, error)
	Networks(ctx context.Context) ([]detector.Network, error)
	Targets(ctx context.Context) ([]string, error)
}

// Compile-time interface guard.
var _ Source = (*detector.Client)(nil)

// Aggregator runs refresh cycles against a Source.
type Aggregator struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Aggregator. m may be nil.
func New(source Source, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		source:  source,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Refresh starts the status, networks and targets fetches together and
// waits for all three to settle. A failing fetch never cancels or discards
// its siblings.
func (a *Aggregator) Refresh(ctx context.Context) Outcome {
	out := Outcome{
		ID:        uuid.NewString(),
		StartedAt: a.now(),
	}

	// No derived context: the group must not cancel siblings, and every
	// goroutine reports through its own Result instead of the group error.
	var g errgroup.Group
	g.Go(func() error {
		s, err := a.source.Status(ctx)
		out.Status = resultOf(s, err)
		return nil
	})
	g.Go(func() error {
		nets, err := a.source.Networks(ctx)
		out.Networks = resultOf(nets, err)
		return nil
	})
	g.Go(func() error {
		targets, err := a.source.Targets(ctx)
		out.Targets = resultOf(targets, err)
		return nil
	})
	_ = g.Wait()

	out.Duration = a.now().Sub(out.StartedAt)
	a.record(out)
	return out
}

func (a *Aggregator) record(o Outcome) {
	for _, f := range []struct {
		source string
		err    error
	}{
		{SourceStatus, o.Status.Err},
		{SourceNetworks, o.Networks.Err},
		{SourceTargets, o.Targets.Err},
	} {
		if f.err == nil {
			continue
		}
		a.metrics.SourceFailed(f.source)
		a.logger.Warn("detector fetch failed",
			zap.String("cycle", o.ID),
			zap.String("source", f.source),
			zap.Error(f.err),
		)
	}

	result := metrics.ResultOK
	switch o.Failures() {
	case 0:
	case 3:
		result = metrics.ResultFailed
	default:
		result = metrics.ResultPartial
	}
	a.metrics.ObserveCycle(result, o.Duration)

	a.logger.Debug("refresh cycle settled",
		zap.String("cycle", o.ID),
		zap.Duration("duration", o.Duration),
		zap.Int("failures", o.Failures()),
	)
}
