package status

import (
	"time"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

// Report is an emitted line together with what it was built from.
type Report struct {
	Line     Line               `json:"line"`
	State    string             `json:"state"`
	Snapshot powerinfo.Snapshot `json:"snapshot"`
	Notified bool               `json:"notified"`
	Time     time.Time          `json:"time"`
}

// Activity summarizes the trigger events a daemon handled recently.
type Activity struct {
	// Records are the times of the last events, oldest first, in RFC 3339.
	Records  []string  `json:"records"`
	LastHour int       `json:"lastHour"`
	Last     time.Time `json:"last"`
}
