// Package upower reads battery devices through the upower command line tool.
package upower

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
)

var (
	// ErrNotInstalled is returned when the upower executable cannot be found.
	ErrNotInstalled = errors.New("upower executable not found")

	// ErrUnexpectedField is returned when upower prints a field this package
	// does not know how to handle.
	ErrUnexpectedField = errors.New("unexpected upower field")

	// ErrMalformedLine is returned for a field line without a value.
	ErrMalformedLine = errors.New("malformed upower line")

	// ErrNonFinite is returned for energy values such as "nan" or "inf".
	ErrNonFinite = errors.New("non-finite upower value")

	// ErrMonitorExited is returned when upower --monitor exits with status 0.
	ErrMonitorExited = errors.New("upower --monitor exited cleanly but is supposed to run forever")
)

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// Runner runs a command to completion and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotInstalled
		}
		return nil, pkgerrors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}

	return out, nil
}

// Client queries battery devices from upower.
type Client struct {
	binary string
	runner Runner
}

// New returns a Client running the given upower binary.
func New(binary string) *Client {
	return NewWithRunner(binary, execRunner{})
}

// NewWithRunner returns a Client with a custom Runner.
func NewWithRunner(binary string, runner Runner) *Client {
	if binary == "" {
		binary = "upower"
	}
	return &Client{
		binary: binary,
		runner: runner,
	}
}

// Devices returns the object paths of all battery devices, in the order
// upower enumerates them.
func (c *Client) Devices(ctx context.Context) ([]string, error) {
	logrus.Tracef("Devices called")

	out, err := c.runner.Output(ctx, c.binary, "-e")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to enumerate devices")
	}

	devices := FilterBatteries(string(out))
	logrus.WithField("devices", devices).Trace("enumerated battery devices")

	return devices, nil
}

// Info returns the reading of a single device.
func (c *Client) Info(ctx context.Context, device string) (powerinfo.Reading, error) {
	out, err := c.runner.Output(ctx, c.binary, "-i", device)
	if err != nil {
		return powerinfo.Reading{}, pkgerrors.Wrapf(err, "failed to get info of %s", device)
	}

	r, err := ParseInfo(string(out))
	if err != nil {
		return powerinfo.Reading{}, pkgerrors.Wrapf(err, "failed to parse info of %s", device)
	}
	r.Device = device

	logrus.WithFields(logrus.Fields{
		"device":     device,
		"states":     r.States,
		"energy":     r.Energy,
		"energyFull": r.EnergyFull,
		"energyRate": r.EnergyRate,
	}).Trace("read device info")

	return r, nil
}

// Readings returns the readings of every battery device. It returns
// powerinfo.ErrNoBattery if there is none.
func (c *Client) Readings(ctx context.Context) ([]powerinfo.Reading, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		return nil, powerinfo.ErrNoBattery
	}

	readings := make([]powerinfo.Reading, 0, len(devices))
	for _, d := range devices {
		r, err := c.Info(ctx, d)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	return readings, nil
}
