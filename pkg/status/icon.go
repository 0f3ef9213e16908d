package status

import (
	"fmt"
	"math"
)

// Nerd font glyphs, indexed by ten-point band.
var (
	dischargingIcons = [11]string{"󰂎", "󰁺", "󰁻", "󰁼", "󰁽", "󰁾", "󰁿", "󰂀", "󰂁", "󰂂", "󰁹"}
	chargingIcons    = [11]string{"󰢟", "󰢜", "󰂆", "󰂇", "󰂈", "󰢝", "󰂉", "󰢞", "󰂊", "󰂋", "󰂅"}
)

// Icon returns the glyph for percentage. It panics if percentage is outside
// [0, 100], which means the snapshot was computed incorrectly.
func Icon(percentage float64, discharging bool) string {
	if math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		panic(fmt.Sprintf("battery percentage out of range: %v", percentage))
	}

	band := int(math.Floor(percentage/10)) * 10
	if discharging {
		return dischargingIcons[band/10]
	}
	return chargingIcons[band/10]
}
