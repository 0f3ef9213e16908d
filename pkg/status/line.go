package status

import (
	"encoding/json"
	"io"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

// Line is one status line of the waybar custom module protocol.
type Line struct {
	Text    string `json:"text"`
	Class   string `json:"class"`
	Tooltip string `json:"tooltip"`
}

// NewLine renders the snapshot with the class of state d.
func NewLine(d DisplayState, s powerinfo.Snapshot) Line {
	return Line{
		Text:    Icon(s.Percentage, s.Discharging),
		Class:   d.Class(),
		Tooltip: Tooltip(s),
	}
}

// Tooltip returns "N%" or "N% (time phrase)" when an estimate is available.
func Tooltip(s powerinfo.Snapshot) string {
	tooltip := PercentageString(s.Percentage)
	if s.HoursLeft == nil {
		return tooltip
	}
	if ts := TimeString(*s.HoursLeft); ts != "" {
		tooltip += " (" + ts + ")"
	}
	return tooltip
}

// Write encodes the line as a single line of JSON.
func (l Line) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(l)
}
