package daemon

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
	"github.com/charlie0129/waybar-battery/pkg/notify"
	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
	"github.com/charlie0129/waybar-battery/pkg/status"
)

// Trigger wakes the loop up. *upower.Monitor is the usual implementation.
type Trigger interface {
	// Next blocks until the next event. It returns false when no more
	// events will come.
	Next() bool
	// Err returns the reason Next returned false.
	Err() error
	Close() error
}

// Source reads the batteries.
type Source interface {
	Readings(ctx context.Context) ([]powerinfo.Reading, error)
}

// Loop turns trigger events into status lines and notifications. Only the
// goroutine running Run touches the tracker.
type Loop struct {
	conf     config.Config
	source   Source
	notifier notify.Notifier
	out      io.Writer
	hub      *events.EventHub
	recorder *TimeSeriesRecorder

	tracker *status.Tracker
	// noBattery is set while polls keep finding no battery.
	noBattery bool

	mu   sync.RWMutex
	last *status.Report
}

func NewLoop(conf config.Config, source Source, notifier notify.Notifier, out io.Writer, hub *events.EventHub) *Loop {
	return &Loop{
		conf:     conf,
		source:   source,
		notifier: notifier,
		out:      out,
		hub:      hub,
		recorder: NewTimeSeriesRecorder(60),
		tracker:  status.NewTracker(thresholds(conf)),
	}
}

func thresholds(conf config.Config) status.Thresholds {
	return status.Thresholds{
		Critical: conf.CriticalThreshold(),
		Low:      conf.LowThreshold(),
	}
}

// Last returns the last emitted status, or false if nothing was emitted yet.
func (l *Loop) Last() (status.Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.last == nil {
		return status.Report{}, false
	}
	return *l.last, true
}

// Recorder returns the times of recently handled events.
func (l *Loop) Recorder() *TimeSeriesRecorder {
	return l.recorder
}

// Run handles one event per trigger until the trigger is exhausted or ctx
// is done. The trigger is always closed before Run returns. A trigger that
// stops while ctx is still live is an error.
func (l *Loop) Run(ctx context.Context, trigger Trigger) error {
	defer func() {
		if err := trigger.Close(); err != nil {
			logrus.Errorf("failed to close trigger: %v", err)
		}
	}()

	if l.conf.EmitOnStart() {
		logrus.Debug("emitting initial status")
		if err := l.Tick(ctx); err != nil {
			return err
		}
	}

	for trigger.Next() {
		logrus.Trace("trigger event")
		if err := l.Tick(ctx); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		logrus.Debug("loop stopped")
		return nil
	}

	if err := trigger.Err(); err != nil {
		return err
	}
	return errors.New("trigger stopped unexpectedly")
}

// Tick reads the batteries once and emits a status line. Missing batteries
// skip the event; every other failure is returned.
func (l *Loop) Tick(ctx context.Context) error {
	l.recorder.AddRecordNow()

	readings, err := l.source.Readings(ctx)
	if errors.Is(err, powerinfo.ErrNoBattery) {
		if !l.noBattery {
			logrus.Warn("no battery found, skipping")
		} else {
			logrus.Debug("no battery found, skipping")
		}
		l.noBattery = true
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read batteries")
	}
	if l.noBattery {
		logrus.Info("battery found again")
		l.noBattery = false
	}

	totals, err := powerinfo.Aggregate(readings)
	if err != nil {
		return err
	}
	snapshot, err := powerinfo.NewSnapshot(totals)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to build snapshot from %d devices", len(readings))
	}

	// Thresholds may change on config reload.
	l.tracker.Thresholds = thresholds(l.conf)
	res := l.tracker.Step(snapshot)

	fields := logrus.Fields{
		"percentage":  snapshot.Percentage,
		"discharging": snapshot.Discharging,
		"state":       res.To,
		"devices":     len(readings),
	}
	if snapshot.HoursLeft != nil {
		fields["hoursLeft"] = *snapshot.HoursLeft
	}

	if res.Transition {
		logrus.WithFields(fields).WithField("from", res.From).Info("battery state changed")
	} else {
		logrus.WithFields(fields).Trace("battery state unchanged")
	}

	if res.Notification != nil {
		if err := l.notify(ctx, *res.Notification); err != nil {
			return err
		}
	}

	if res.Transition || res.Notification != nil {
		l.hub.Publish(events.StatusTransition, events.StatusTransitionEvent{
			From:     res.From.String(),
			To:       res.To.String(),
			Notified: l.tracker.Notified,
			Ts:       time.Now().Unix(),
		})
	}

	line := status.NewLine(res.To, snapshot)
	if err := line.Write(l.out); err != nil {
		return pkgerrors.Wrap(err, "failed to write status line")
	}

	now := time.Now()
	l.mu.Lock()
	l.last = &status.Report{
		Line:     line,
		State:    res.To.String(),
		Snapshot: snapshot,
		Notified: l.tracker.Notified,
		Time:     now,
	}
	l.mu.Unlock()

	l.hub.Publish(events.StatusLine, events.StatusLineEvent{
		Text:    line.Text,
		Class:   line.Class,
		Tooltip: line.Tooltip,
		Ts:      now.Unix(),
	})

	return nil
}

func (l *Loop) notify(ctx context.Context, n status.Notification) error {
	entry := logrus.WithFields(logrus.Fields{
		"title":   n.Title,
		"urgency": n.Urgency,
	})

	if !l.conf.Notifications() {
		entry.Debug("notifications disabled, not sending")
		return nil
	}

	err := l.notifier.Notify(ctx, n)
	if err == nil {
		entry.Info("notification sent")
		return nil
	}

	if l.conf.NotificationFailure() == config.NotificationFailureWarn {
		entry.Warnf("failed to send notification: %v", err)
		return nil
	}
	return pkgerrors.Wrap(err, "failed to send notification")
}

// tickerTrigger fires every interval until ctx is done. It drives the
// sysfs source, which has no change events.
type tickerTrigger struct {
	ctx    context.Context
	ticker *time.Ticker
}

func newTickerTrigger(ctx context.Context, interval time.Duration) *tickerTrigger {
	return &tickerTrigger{
		ctx:    ctx,
		ticker: time.NewTicker(interval),
	}
}

func (t *tickerTrigger) Next() bool {
	select {
	case <-t.ctx.Done():
		return false
	case <-t.ticker.C:
		return true
	}
}

func (t *tickerTrigger) Err() error {
	return t.ctx.Err()
}

func (t *tickerTrigger) Close() error {
	t.ticker.Stop()
	return nil
}
