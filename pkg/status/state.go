// Package status classifies battery snapshots for display and decides when
// the user should be notified.
package status

import (
	"fmt"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

// DisplayState is the user-facing classification of the battery.
type DisplayState int

const (
	// Uninitialized is the state before the first snapshot. It is never a
	// transition target.
	Uninitialized DisplayState = iota
	Charging
	Normal
	Low
	Critical
)

// Default thresholds, in percent. A discharging battery below Critical is
// critical, below Low is low.
const (
	DefaultCriticalThreshold = 6.0
	DefaultLowThreshold      = 16.0
)

// Thresholds splits discharging percentages into Normal, Low and Critical.
type Thresholds struct {
	Critical float64
	Low      float64
}

// DefaultThresholds returns the 6% / 16% thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: DefaultCriticalThreshold, Low: DefaultLowThreshold}
}

// Urgency is the urgency level of a desktop notification.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyCritical
)

func (u Urgency) String() string {
	if u == UrgencyCritical {
		return "critical"
	}
	return "normal"
}

// Notification is a desktop notification to be delivered.
type Notification struct {
	Title   string
	Body    string
	Urgency Urgency
}

// Target returns the state a snapshot belongs to.
func Target(s powerinfo.Snapshot, t Thresholds) DisplayState {
	switch {
	case !s.Discharging:
		return Charging
	case s.Percentage < t.Critical:
		return Critical
	case s.Percentage < t.Low:
		return Low
	default:
		return Normal
	}
}

// Next returns the new state and true if the snapshot moves the display out
// of current. It returns current and false otherwise.
func Next(current DisplayState, s powerinfo.Snapshot, t Thresholds) (DisplayState, bool) {
	target := Target(s, t)
	if target == current {
		return current, false
	}
	return target, true
}

// Class returns the CSS class token of the state.
func (d DisplayState) Class() string {
	switch d {
	case Charging:
		return "charging"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Critical:
		return "critical"
	case Uninitialized:
		panic("class requested for uninitialized display state")
	}
	panic(fmt.Sprintf("invalid display state %d", int(d)))
}

func (d DisplayState) String() string {
	if d == Uninitialized {
		return "uninitialized"
	}
	return d.Class()
}

// notification returns title, verb and urgency used to notify about d.
func (d DisplayState) notification() (string, string, Urgency) {
	switch d {
	case Normal:
		return "Battery Discharging", "empty", UrgencyNormal
	case Low:
		return "Battery Low", "empty", UrgencyCritical
	case Critical:
		return "Battery Very Low", "empty", UrgencyCritical
	case Charging:
		return "Battery Charging", "fully charged", UrgencyNormal
	case Uninitialized:
		panic("notification requested for uninitialized display state")
	}
	panic(fmt.Sprintf("invalid display state %d", int(d)))
}

// NewNotification builds the notification for state d at the given snapshot.
func NewNotification(d DisplayState, s powerinfo.Snapshot, hoursLeft float64) Notification {
	title, verb, urgency := d.notification()
	return Notification{
		Title:   title,
		Body:    fmt.Sprintf("Battery is at %s. Will be %s in %s.", PercentageString(s.Percentage), verb, TimeString(hoursLeft)),
		Urgency: urgency,
	}
}

// PercentageString formats a percentage the way it is displayed, e.g. "42%".
func PercentageString(p float64) string {
	return fmt.Sprintf("%d%%", int(p))
}
