// Package reconcile applies refresh outcomes to the page.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/page"
	"github.com/HerbHall/mdpanel/internal/refresh"
	"github.com/HerbHall/mdpanel/internal/view"
)

// BannerMessage is shown while the latest cycle has any failed fetch.
const BannerMessage = "Communication with detector failed."

// Reconciler updates each page region from its own sub-result. It is not
// safe for concurrent use; the scheduler goroutine is its only caller.
type Reconciler struct {
	page   page.Committer
	logger *zap.Logger
}

// New creates a Reconciler writing through p.
func New(p page.Committer, logger *zap.Logger) *Reconciler {
	return &Reconciler{page: p, logger: logger}
}

// Apply reconciles every region from o in a single commit, so readers see
// the page either before or after the whole cycle.
func (r *Reconciler) Apply(o refresh.Outcome) {
	r.page.Batch(func(h page.Handles) {
		applyStatus(h, o.Status)
		applyNetworks(h.Networks, o.Networks)
		applyTargets(h.Targets, o.Targets)

		if o.Failed() {
			h.Banner.Show(BannerMessage)
		} else {
			h.Banner.Hide()
		}
	})

	r.logger.Debug("page reconciled",
		zap.String("cycle", o.ID),
		zap.Bool("status", o.Status.OK()),
		zap.Bool("networks", o.Networks.OK()),
		zap.Bool("targets", o.Targets.OK()),
	)
}

// A failed status leaves the last rendering in place.
func applyStatus(h page.Handles, res refresh.Result[detector.Status]) {
	if !res.OK() {
		return
	}
	v := view.Status(res.Value)
	h.Running.SetText(v.Running)
	h.Silent.SetText(v.Silent)
	h.Alarm.SetText(v.Alarm)
	h.SilentToggle.SetLabel(v.SilentToggle)
}

// A failed scan result clears and hides the section: stale visibility data
// would be misleading.
func applyNetworks(t page.Table, res refresh.Result[[]detector.Network]) {
	t.ClearRows()
	if !res.OK() {
		t.SetVisible(false)
		return
	}
	fill(t, view.NetworkRows(res.Value))
}

// A failed targets fetch leaves the last list in place.
func applyTargets(t page.Table, res refresh.Result[[]string]) {
	if !res.OK() {
		return
	}
	t.ClearRows()
	fill(t, view.TargetRows(res.Value))
}

func fill(t page.Table, rows []view.Row) {
	for _, row := range rows {
		t.AppendRow(row)
	}
	t.SetVisible(len(rows) > 0)
}
