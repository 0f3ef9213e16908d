// Package sysfs reads batteries straight from the kernel through
// github.com/distatus/battery, for systems without upower.
package sysfs

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

// Source lists batteries with distatus/battery.
type Source struct {
	getAll func() ([]*battery.Battery, error)
}

// New returns a Source reading the system batteries.
func New() *Source {
	return &Source{getAll: battery.GetAll}
}

// Readings returns one reading per battery in the order the kernel lists them.
func (s *Source) Readings(_ context.Context) ([]powerinfo.Reading, error) {
	batteries, err := s.getAll()
	if err != nil && !onlyOptionalFieldsMissing(err) {
		return nil, pkgerrors.Wrap(err, "failed to read batteries")
	}

	readings := make([]powerinfo.Reading, 0, len(batteries))
	for i, bat := range batteries {
		if bat == nil {
			continue
		}
		state, err := deviceState(bat.State.String())
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "battery %d", i)
		}

		r := powerinfo.Reading{
			Device:     fmt.Sprintf("BAT%d", i),
			States:     []powerinfo.DeviceState{state},
			Energy:     bat.Current,
			EnergyFull: bat.Full,
			// Some platforms report a negative rate while discharging.
			EnergyRate: math.Abs(bat.ChargeRate),
		}

		logrus.WithFields(logrus.Fields{
			"device":     r.Device,
			"state":      state,
			"energy":     r.Energy,
			"energyFull": r.EnergyFull,
			"energyRate": r.EnergyRate,
		}).Trace("read battery")

		readings = append(readings, r)
	}

	if len(readings) == 0 {
		return nil, powerinfo.ErrNoBattery
	}

	return readings, nil
}

// onlyOptionalFieldsMissing reports whether err only complains about fields
// the snapshot does not use, such as the design voltage.
func onlyOptionalFieldsMissing(err error) bool {
	errs, ok := err.(battery.Errors)
	if !ok {
		return false
	}
	for _, e := range errs {
		if e == nil {
			continue
		}
		p, ok := e.(battery.ErrPartial)
		if !ok {
			return false
		}
		if p.State != nil || p.Current != nil || p.Full != nil || p.ChargeRate != nil {
			return false
		}
		logrus.WithError(p).Debug("ignoring missing optional battery fields")
	}
	return true
}

// deviceState maps battery states to the upower vocabulary. The kernel
// reports "Not charging" where upower says pending-charge.
func deviceState(s string) (powerinfo.DeviceState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return powerinfo.Charging, nil
	case "discharging", "empty":
		return powerinfo.Discharging, nil
	case "full":
		return powerinfo.FullyCharged, nil
	case "not charging", "idle", "unknown":
		return powerinfo.PendingCharge, nil
	}
	return 0, fmt.Errorf("%w: %q", powerinfo.ErrUnknownState, s)
}
