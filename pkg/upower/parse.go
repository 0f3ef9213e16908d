package upower

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

const (
	fieldState      = "state:"
	fieldEnergy     = "energy:"
	fieldEnergyFull = "energy-full:"
	fieldEnergyRate = "energy-rate:"
)

var fields = []string{fieldState, fieldEnergy, fieldEnergyFull, fieldEnergyRate}

// FilterBatteries returns the lines of `upower -e` output naming a battery.
// Peripheral batteries (hid devices such as mice) are skipped.
func FilterBatteries(enumeration string) []string {
	var devices []string
	for _, line := range strings.Split(enumeration, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "hid") || !strings.Contains(line, "battery") {
			continue
		}
		devices = append(devices, line)
	}
	return devices
}

// ParseInfo parses the output of `upower -i <device>`. Only the state and
// energy lines are read; each is "<field> <value> [unit]".
//
// Repeated energy fields are summed and repeated states are all kept, so
// they combine the same way readings of different devices do.
func ParseInfo(info string) (powerinfo.Reading, error) {
	var r powerinfo.Reading

	for _, line := range strings.Split(info, "\n") {
		if !isFieldLine(line) {
			continue
		}

		words := strings.Fields(line)
		if len(words) < 2 {
			return r, fmt.Errorf("%w: %q", ErrMalformedLine, line)
		}
		name, value := words[0], words[1]

		if name == fieldState {
			s, err := powerinfo.ParseDeviceState(value)
			if err != nil {
				return r, err
			}
			r.States = append(r.States, s)
			continue
		}

		var target *float64
		switch name {
		case fieldEnergy:
			target = &r.Energy
		case fieldEnergyFull:
			target = &r.EnergyFull
		case fieldEnergyRate:
			target = &r.EnergyRate
		default:
			return r, fmt.Errorf("%w: %q", ErrUnexpectedField, name)
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return r, fmt.Errorf("invalid value of %s: %w", name, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return r, fmt.Errorf("%w: %s %s", ErrNonFinite, name, value)
		}
		*target += f
	}

	return r, nil
}

func isFieldLine(line string) bool {
	for _, f := range fields {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}
