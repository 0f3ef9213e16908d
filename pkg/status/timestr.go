package status

import (
	"fmt"
	"math"
	"strings"
)

// TimeString turns fractional hours into a phrase like "1 hour and 5 minutes".
// Minutes are truncated, never rounded. It returns "" for less than a minute.
func TimeString(hoursLeft float64) string {
	if hoursLeft < 0 || math.IsNaN(hoursLeft) {
		hoursLeft = 0
	}

	hours := math.Floor(hoursLeft)
	minutes := int(math.Floor((hoursLeft - hours) * 60))

	var parts []string
	if h := int(hours); h != 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if minutes != 0 {
		parts = append(parts, plural(minutes, "minute"))
	}

	return strings.Join(parts, " and ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
