// Package view turns detector payloads into display-ready values. Every
// function here is pure.
package view

import (
	"fmt"
	"strconv"

	"github.com/HerbHall/mdpanel/internal/detector"
)

// Silent toggle labels. The label names the action the button performs.
const (
	LabelSilentOn  = "Silent On"
	LabelSilentOff = "Silent Off"
)

// Row classes and control actions.
const (
	ClassTarget = "target"

	ActionAdd    = "add"
	ActionRemove = "remove"
)

// StatusView is the textual rendering of a detector.Status.
type StatusView struct {
	Running      string `json:"running"`
	Silent       string `json:"silent"`
	Alarm        string `json:"alarm"`
	SilentToggle string `json:"silent_toggle"`
}

// Control is the single action attached to a table row.
type Control struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Target string `json:"target"`
}

// Row is one table row: an optional class, its cells in display order and
// an optional trailing control.
type Row struct {
	Class   string   `json:"class,omitempty"`
	Cells   []string `json:"cells"`
	Control *Control `json:"control,omitempty"`
}

// Status renders s.
func Status(s detector.Status) StatusView {
	return StatusView{
		Running:      strconv.FormatBool(s.Running),
		Silent:       strconv.FormatBool(s.Silent),
		Alarm:        strconv.FormatBool(s.Alarm),
		SilentToggle: SilentToggleLabel(s.Silent),
	}
}

// SilentToggleLabel returns the label offering the opposite of silent.
func SilentToggleLabel(silent bool) string {
	if silent {
		return LabelSilentOff
	}
	return LabelSilentOn
}

// NextSilent returns the silent value the toggle currently labelled label
// requests.
func NextSilent(label string) (bool, error) {
	switch label {
	case LabelSilentOn:
		return true, nil
	case LabelSilentOff:
		return false, nil
	default:
		return false, fmt.Errorf("unknown silent toggle label %q", label)
	}
}

// NetworkRows renders one row per network, preserving order. Targets get
// the target class and a remove control, other networks an add control.
// A network without an identifier gets no control.
func NetworkRows(nets []detector.Network) []Row {
	rows := make([]Row, 0, len(nets))
	for _, n := range nets {
		row := Row{Cells: append([]string(nil), n.Fields...)}
		action := ActionAdd
		if n.IsTarget {
			row.Class = ClassTarget
			action = ActionRemove
		}
		if n.ID != "" {
			row.Control = newControl(action, n.ID)
		}
		rows = append(rows, row)
	}
	return rows
}

// TargetRows renders one row per target identifier with a remove control.
func TargetRows(targets []string) []Row {
	rows := make([]Row, 0, len(targets))
	for _, id := range targets {
		rows = append(rows, Row{
			Cells:   []string{id},
			Control: newControl(ActionRemove, id),
		})
	}
	return rows
}

func newControl(action, target string) *Control {
	label := "Add"
	if action == ActionRemove {
		label = "Remove"
	}
	return &Control{Label: label, Action: action, Target: target}
}
