package status

import "github.com/charlie0129/waybar-battery/pkg/powerinfo"

// Tracker holds the display state across polls and remembers whether the
// current state has already been notified. It is not safe for concurrent use.
type Tracker struct {
	State      DisplayState
	Notified   bool
	Thresholds Thresholds
}

// NewTracker returns a Tracker in the Uninitialized state.
func NewTracker(t Thresholds) *Tracker {
	return &Tracker{
		State: Uninitialized,
		// Nothing to notify before the first transition.
		Notified:   true,
		Thresholds: t,
	}
}

// Result is the outcome of feeding one snapshot to a Tracker.
type Result struct {
	From       DisplayState
	To         DisplayState
	Transition bool
	// Notification is set when a notification is due for the current state.
	Notification *Notification
}

// Step applies the snapshot. A transition resets the notified flag; the
// notification for the new state is emitted by the first poll carrying a
// time estimate, starting with this one.
func (t *Tracker) Step(s powerinfo.Snapshot) Result {
	step := Result{From: t.State, To: t.State}

	if next, ok := Next(t.State, s, t.Thresholds); ok {
		t.State = next
		t.Notified = false
		step.To = next
		step.Transition = true
	}

	if !t.Notified && s.HoursLeft != nil {
		n := NewNotification(t.State, s, *s.HoursLeft)
		step.Notification = &n
		t.Notified = true
	}

	return step
}
