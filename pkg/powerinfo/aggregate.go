package powerinfo

import "math"

// Merge folds the state of another device into s.
//
// The fold is not commutative. A pending-charge device seen while the
// accumulator is still fully-charged turns the pack into discharging, while a
// fully-charged device seen after a pending-charge one changes nothing.
// Charging and discharging always overwrite, so the last active device wins.
func (s DeviceState) Merge(other DeviceState) DeviceState {
	switch other {
	case PendingCharge:
		if s == FullyCharged {
			return Discharging
		}
		return s
	case FullyCharged:
		return s
	case Charging, Discharging:
		return other
	}
	panic("invalid device state")
}

// Aggregate sums the readings and folds their states left to right,
// seeded with FullyCharged. An empty slice yields ErrNoBattery.
func Aggregate(readings []Reading) (Totals, error) {
	if len(readings) == 0 {
		return Totals{}, ErrNoBattery
	}

	t := Totals{State: FullyCharged}
	for _, r := range readings {
		t.Energy += r.Energy
		t.EnergyFull += r.EnergyFull
		t.EnergyRate += r.EnergyRate
		for _, s := range r.States {
			t.State = t.State.Merge(s)
		}
	}

	return t, nil
}

// NewSnapshot builds the snapshot for the aggregated totals.
func NewSnapshot(t Totals) (Snapshot, error) {
	if t.State == FullyCharged {
		return Snapshot{Percentage: 100}, nil
	}

	if t.EnergyFull == 0 {
		return Snapshot{}, ErrZeroCapacity
	}

	s := Snapshot{
		Percentage:  clampPercentage(100 * t.Energy / t.EnergyFull),
		Discharging: t.State == Discharging,
	}

	if t.EnergyRate != 0 {
		var hours float64
		if s.Discharging {
			hours = t.Energy / t.EnergyRate
		} else {
			hours = (t.EnergyFull - t.Energy) / t.EnergyRate
		}
		s.HoursLeft = &hours
	}

	return s, nil
}

// Some batteries report slightly more energy than energy-full.
func clampPercentage(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}
