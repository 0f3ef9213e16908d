package powerinfo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBattery is returned when no battery device is present. It is not fatal.
	ErrNoBattery = errors.New("no battery found")

	// ErrUnknownState is returned for a device state token that is not recognized.
	ErrUnknownState = errors.New("unknown device state")

	// ErrZeroCapacity is returned when the batteries report zero full energy
	// while not fully charged, so no percentage can be computed.
	ErrZeroCapacity = errors.New("battery reports zero full capacity")
)

// DeviceState represents the charging state reported for one battery device.
type DeviceState int

const (
	// FullyCharged indicates the device is full.
	FullyCharged DeviceState = iota
	// PendingCharge indicates the device is plugged in but not charging yet.
	PendingCharge
	// Charging indicates the device is charging.
	Charging
	// Discharging indicates the device is discharging.
	Discharging
)

// ParseDeviceState converts a upower state token into a DeviceState.
func ParseDeviceState(s string) (DeviceState, error) {
	switch s {
	case "pending-charge":
		return PendingCharge, nil
	case "charging":
		return Charging, nil
	case "discharging":
		return Discharging, nil
	case "fully-charged":
		return FullyCharged, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, s)
}

func (s DeviceState) String() string {
	switch s {
	case FullyCharged:
		return "fully-charged"
	case PendingCharge:
		return "pending-charge"
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	}
	panic(fmt.Sprintf("invalid device state %d", int(s)))
}

// Reading is the raw data of a single battery device. States holds every
// state the device reported, in order; it is usually exactly one.
// Units:
// - Energy, EnergyFull: Wh (or any unit, as long as all devices agree)
// - EnergyRate: W, always non-negative
type Reading struct {
	Device     string        `json:"device"`
	States     []DeviceState `json:"states"`
	Energy     float64       `json:"energy"`
	EnergyFull float64       `json:"energyFull"`
	EnergyRate float64       `json:"energyRate"`
}

// Totals is the combination of all battery readings of one poll.
type Totals struct {
	Energy     float64
	EnergyFull float64
	EnergyRate float64
	State      DeviceState
}

// Snapshot is the normalized battery status of one poll.
type Snapshot struct {
	// Percentage is always within [0, 100].
	Percentage  float64 `json:"percentage"`
	Discharging bool    `json:"discharging"`
	// HoursLeft is the time to empty when discharging or to full when
	// charging. It is nil when no energy rate was observed.
	HoursLeft *float64 `json:"hoursLeft,omitempty"`
}
