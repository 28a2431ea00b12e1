// Package page defines the handles the reconciler writes through and Model,
// the in-memory page the dashboard server renders.
package page

import (
	"sync"

	"github.com/HerbHall/mdpanel/internal/view"
)

// Text is a region holding one line of text.
type Text interface {
	SetText(s string)
}

// Banner is the failure banner.
type Banner interface {
	Show(message string)
	Hide()
}

// Button is a control whose label can change.
type Button interface {
	SetLabel(label string)
}

// Table is a repopulatable table section.
type Table interface {
	ClearRows()
	AppendRow(row view.Row)
	SetVisible(visible bool)
}

// Handles is the set of page regions a reconciler updates.
type Handles struct {
	Running      Text
	Silent       Text
	Alarm        Text
	Banner       Banner
	SilentToggle Button
	Networks     Table
	Targets      Table
}

// BannerState is the banner as rendered.
type BannerState struct {
	Visible bool   `json:"visible"`
	Message string `json:"message,omitempty"`
}

// TableState is a table section as rendered.
type TableState struct {
	Visible bool       `json:"visible"`
	Rows    []view.Row `json:"rows"`
}

// Snapshot is a point-in-time copy of the page.
type Snapshot struct {
	Running      string      `json:"running"`
	Silent       string      `json:"silent"`
	Alarm        string      `json:"alarm"`
	SilentToggle string      `json:"silent_toggle"`
	Banner       BannerState `json:"banner"`
	Networks     TableState  `json:"networks"`
	Targets      TableState  `json:"targets"`
}

// Committer runs fn with handles whose writes become visible to readers
// together, once fn returns.
type Committer interface {
	Batch(fn func(h Handles))
}

// Model is the in-memory page. It is safe for concurrent use: the
// reconciler writes through Batch while HTTP handlers read snapshots.
type Model struct {
	mu    sync.RWMutex
	state Snapshot
}

// NewModel returns a page in its initial state: empty texts, hidden tables,
// hidden banner and the toggle offering "Silent On".
func NewModel() *Model {
	return &Model{state: Snapshot{
		SilentToggle: view.LabelSilentOn,
		Networks:     TableState{Rows: []view.Row{}},
		Targets:      TableState{Rows: []view.Row{}},
	}}
}

// Handles returns handles bound to m's regions. Every call through them
// takes the lock on its own; use Batch to update several regions at once.
func (m *Model) Handles() Handles {
	return handlesOn(m)
}

// Batch holds the write lock while fn runs, so a Snapshot never observes
// part of fn's updates. The handles passed to fn must not be used after fn
// returns.
func (m *Model) Batch(fn func(h Handles)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(handlesOn(staged{&m.state}))
}

func handlesOn(w updater) Handles {
	return Handles{
		Running:      textRegion{w, func(s *Snapshot) *string { return &s.Running }},
		Silent:       textRegion{w, func(s *Snapshot) *string { return &s.Silent }},
		Alarm:        textRegion{w, func(s *Snapshot) *string { return &s.Alarm }},
		Banner:       bannerRegion{w},
		SilentToggle: textRegion{w, func(s *Snapshot) *string { return &s.SilentToggle }},
		Networks:     tableRegion{w, func(s *Snapshot) *TableState { return &s.Networks }},
		Targets:      tableRegion{w, func(s *Snapshot) *TableState { return &s.Targets }},
	}
}

// Snapshot returns a deep copy of the current page.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.state
	out.Networks.Rows = copyRows(m.state.Networks.Rows)
	out.Targets.Rows = copyRows(m.state.Targets.Rows)
	return out
}

// SilentLabel returns the label currently shown on the silent toggle.
func (m *Model) SilentLabel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.SilentToggle
}

type updater interface {
	update(fn func(s *Snapshot))
}

func (m *Model) update(fn func(s *Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

// staged writes straight to a state the caller already holds the lock on.
type staged struct{ s *Snapshot }

func (st staged) update(fn func(s *Snapshot)) { fn(st.s) }

func copyRows(rows []view.Row) []view.Row {
	out := make([]view.Row, len(rows))
	for i, r := range rows {
		out[i] = r
		out[i].Cells = append([]string(nil), r.Cells...)
		if r.Control != nil {
			c := *r.Control
			out[i].Control = &c
		}
	}
	return out
}

// textRegion serves both Text and Button: a button handle only ever
// changes its label.
type textRegion struct {
	w     updater
	field func(*Snapshot) *string
}

func (r textRegion) SetText(s string) {
	r.w.update(func(st *Snapshot) { *r.field(st) = s })
}

func (r textRegion) SetLabel(label string) { r.SetText(label) }

type bannerRegion struct{ w updater }

func (r bannerRegion) Show(message string) {
	r.w.update(func(st *Snapshot) { st.Banner = BannerState{Visible: true, Message: message} })
}

func (r bannerRegion) Hide() {
	r.w.update(func(st *Snapshot) { st.Banner = BannerState{} })
}

type tableRegion struct {
	w     updater
	table func(*Snapshot) *TableState
}

func (r tableRegion) ClearRows() {
	r.w.update(func(st *Snapshot) { r.table(st).Rows = []view.Row{} })
}

func (r tableRegion) AppendRow(row view.Row) {
	row.Cells = append([]string(nil), row.Cells...)
	if row.Control != nil {
		c := *row.Control
		row.Control = &c
	}
	r.w.update(func(st *Snapshot) {
		t := r.table(st)
		t.Rows = append(t.Rows, row)
	})
}

func (r tableRegion) SetVisible(visible bool) {
	r.w.update(func(st *Snapshot) { r.table(st).Visible = visible })
}
