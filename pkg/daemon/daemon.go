package daemon

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
	"github.com/charlie0129/waybar-battery/pkg/notify"
	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
	"github.com/charlie0129/waybar-battery/pkg/status"
	"github.com/charlie0129/waybar-battery/pkg/sysfs"
	"github.com/charlie0129/waybar-battery/pkg/upower"
)

// Run runs the daemon until SIGINT/SIGTERM, ctx cancellation or a fatal
// error. Status lines are written to out.
func Run(ctx context.Context, conf config.Config, out io.Writer) error {
	// Handle common process-killing signals, so we can gracefully shut down.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Receive SIGHUP to reload config
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigc:
				err := conf.Load()
				if err != nil {
					logrus.Errorf("failed to reload config: %v", err)
					continue
				}
				// Source, upowerPath and statusSocket are only read at startup.
				logrus.Infof("config reloaded")
			}
		}
	}()

	notifier, err := newNotifier(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logrus.Errorf("failed to close notifier: %v", err)
		}
	}()

	hub := events.NewEventHub()

	source, newTrigger, err := newSource(conf)
	if err != nil {
		return err
	}

	loop := NewLoop(conf, source, notifier, out, hub)

	if sock := conf.StatusSocket(); sock != "" {
		srv := NewServer(conf, loop, hub)
		if err := srv.Start(ctx, sock); err != nil {
			return err
		}
		defer srv.Shutdown()
	}

	trigger, err := newTrigger(ctx)
	if err != nil {
		return err
	}

	logrus.WithField("source", conf.Source()).Debug("main loop starts")
	err = loop.Run(ctx, trigger)
	if err != nil {
		return err
	}

	logrus.Info("exiting")
	return nil
}

// dialNotifier connects to the notification service.
var dialNotifier = notify.Dial

// newNotifier returns a notifier that connects on first use, so enabling
// notifications with a reload works without a restart. When notifications
// are enabled at startup, the connection is made right away and a failure is
// fatal unless the failure policy is warn.
func newNotifier(conf config.Config) (*notify.Lazy, error) {
	n := notify.NewLazy(conf.AppName(), dialNotifier)
	if !conf.Notifications() {
		return n, nil
	}

	err := n.Connect()
	if err == nil {
		return n, nil
	}

	if conf.NotificationFailure() == config.NotificationFailureWarn {
		logrus.Warnf("notifications unavailable, retrying on the next notification: %v", err)
		return n, nil
	}
	return nil, err
}

func newSource(conf config.Config) (Source, func(context.Context) (Trigger, error), error) {
	switch conf.Source() {
	case config.SourceUpower:
		binary := conf.UpowerPath()
		return upower.New(binary), func(ctx context.Context) (Trigger, error) {
			m, err := upower.StartMonitor(ctx, binary)
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	case config.SourceSysfs:
		interval := conf.PollInterval()
		return sysfs.New(), func(ctx context.Context) (Trigger, error) {
			return newTickerTrigger(ctx, interval), nil
		}, nil
	default:
		return nil, nil, pkgerrors.Errorf("unknown source %q", conf.Source())
	}
}

// Probe reads the batteries once and classifies them without touching any
// notification state.
func Probe(ctx context.Context, conf config.Config) (status.Report, error) {
	source, _, err := newSource(conf)
	if err != nil {
		return status.Report{}, err
	}

	readings, err := source.Readings(ctx)
	if err != nil {
		return status.Report{}, pkgerrors.Wrap(err, "failed to read batteries")
	}
	totals, err := powerinfo.Aggregate(readings)
	if err != nil {
		return status.Report{}, err
	}
	snapshot, err := powerinfo.NewSnapshot(totals)
	if err != nil {
		return status.Report{}, err
	}

	state := status.Target(snapshot, thresholds(conf))
	return status.Report{
		Line:     status.NewLine(state, snapshot),
		State:    state.String(),
		Snapshot: snapshot,
		Time:     time.Now(),
	}, nil
}
