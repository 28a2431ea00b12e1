// Package dispatch sends user actions to the detector and requests a
// refresh after each one.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/metrics"
	"github.com/HerbHall/mdpanel/internal/view"
)

// Kind identifies a user action.
type Kind string

const (
	StartScan    Kind = "start_scan"
	StopScan     Kind = "stop_scan"
	SetSilent    Kind = "set_silent"
	AddTarget    Kind = "add_target"
	RemoveTarget Kind = "remove_target"
)

// Action is one user request. Target is used by AddTarget and RemoveTarget,
// Silent by SetSilent.
type Action struct {
	Kind   Kind
	Target string
	Silent bool
}

// Mutator is the write side of the detector API.
type Mutator interface {
	StartScan(ctx context.Context) error
	StopScan(ctx context.Context) error
	SetSilent(ctx context.Context, on bool) error
	AddTarget(ctx context.Context, id string) error
	RemoveTarget(ctx context.Context, id string) error
}

// Refresher requests a refresh cycle without blocking.
type Refresher interface {
	Refresh()
}

// Compile-time interface guard.
var _ Mutator = (*detector.Client)(nil)

// Dispatcher performs actions.
type Dispatcher struct {
	mutator   Mutator
	refresher Refresher
	logger    *zap.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

// New creates a Dispatcher. m may be nil.
func New(mutator Mutator, refresher Refresher, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		mutator:   mutator,
		refresher: refresher,
		logger:    logger,
		metrics:   m,
	}
}

// ToggleSilent builds the SetSilent action requested by the toggle
// currently labelled label.
func ToggleSilent(label string) (Action, error) {
	on, err := view.NextSilent(label)
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: SetSilent, Silent: on}, nil
}

// Do issues the mutating call for a and then requests a refresh, whether or
// not the call succeeded. The page only changes through that refresh. The
// returned error is informational; nothing is retried.
func (d *Dispatcher) Do(ctx context.Context, a Action) error {
	err := d.send(ctx, a)
	d.metrics.ObserveAction(string(a.Kind), err)
	if err != nil {
		d.logger.Warn("detector action failed",
			zap.String("action", string(a.Kind)),
			zap.String("target", a.Target),
			zap.Error(err),
		)
	} else {
		d.logger.Info("detector action sent",
			zap.String("action", string(a.Kind)),
			zap.String("target", a.Target),
		)
	}
	d.refresher.Refresh()
	return err
}

// Go runs Do in the background.
func (d *Dispatcher) Go(a Action) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Do(context.Background(), a)
	}()
}

// Wait blocks until every action started with Go has settled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, a Action) error {
	switch a.Kind {
	case StartScan:
		return d.mutator.StartScan(ctx)
	case StopScan:
		return d.mutator.StopScan(ctx)
	case SetSilent:
		return d.mutator.SetSilent(ctx, a.Silent)
	case AddTarget:
		return d.mutator.AddTarget(ctx, a.Target)
	case RemoveTarget:
		return d.mutator.RemoveTarget(ctx, a.Target)
	default:
		return fmt.Errorf("dispatch: unknown action %q", a.Kind)
	}
}
