package upower

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Monitor owns a running `upower --monitor` process. Every line the process
// prints is one trigger event. Close must be called on every exit path, it
// kills the process.
type Monitor struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	err     error

	closeOnce sync.Once
}

// StartMonitor starts `<binary> --monitor`. The process is also killed when
// ctx is done.
func StartMonitor(ctx context.Context, binary string) (*Monitor, error) {
	if binary == "" {
		binary = "upower"
	}

	cmd := exec.CommandContext(ctx, binary, "--monitor")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, ErrNotInstalled
		}
		return nil, pkgerrors.Wrapf(err, "failed to start %s --monitor", binary)
	}

	logrus.WithFields(logrus.Fields{
		"binary": binary,
		"pid":    cmd.Process.Pid,
	}).Debug("upower monitor started")

	return &Monitor{
		cmd:     cmd,
		scanner: bufio.NewScanner(stdout),
	}, nil
}

// Next blocks until the monitor prints a line. It returns false once the
// output stream is closed; Err then tells why.
func (m *Monitor) Next() bool {
	if m.err != nil {
		return false
	}

	if m.scanner.Scan() {
		logrus.WithField("line", m.scanner.Text()).Trace("upower monitor event")
		return true
	}

	m.err = m.wait()
	return false
}

// Err returns why the stream ended. It is never nil after Next returned
// false, since upower --monitor is not supposed to exit.
func (m *Monitor) Err() error {
	return m.err
}

func (m *Monitor) wait() error {
	if err := m.scanner.Err(); err != nil {
		_ = m.Close()
		return pkgerrors.Wrap(err, "failed to read upower --monitor output")
	}

	err := m.cmd.Wait()
	if err == nil {
		return ErrMonitorExited
	}
	return pkgerrors.Wrap(err, "upower --monitor was closed")
}

// Close kills the monitor process. It is safe to call more than once and
// after the process has exited.
func (m *Monitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.cmd.ProcessState != nil {
			return
		}
		logrus.WithField("pid", m.cmd.Process.Pid).Debug("killing upower monitor")
		if kerr := m.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = pkgerrors.Wrap(kerr, "failed to kill upower monitor")
			return
		}
		// Reap the process. The error is the kill signal itself.
		_ = m.cmd.Wait()
	})
	return err
}
