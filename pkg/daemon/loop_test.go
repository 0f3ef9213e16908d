package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
	"github.com/charlie0129/waybar-battery/pkg/status"
	"github.com/charlie0129/waybar-battery/pkg/utils/ptr"
)

// fakeSource returns one poll per call, in order.
type fakeSource struct {
	polls [][]powerinfo.Reading
	errs  []error
	calls int
}

func (f *fakeSource) Readings(_ context.Context) ([]powerinfo.Reading, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.polls) {
		return nil, errors.New("no more polls")
	}
	return f.polls[i], nil
}

// fakeTrigger fires events times, then stops with err.
type fakeTrigger struct {
	events int
	err    error
	closed bool
}

func (f *fakeTrigger) Next() bool {
	if f.events == 0 {
		return false
	}
	f.events--
	return true
}

func (f *fakeTrigger) Err() error { return f.err }

func (f *fakeTrigger) Close() error {
	f.closed = true
	return nil
}

type fakeNotifier struct {
	sent []status.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n status.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func discharging(percentage float64) []powerinfo.Reading {
	return []powerinfo.Reading{{
		Device:     "/org/freedesktop/UPower/devices/battery_BAT0",
		States:     []powerinfo.DeviceState{powerinfo.Discharging},
		Energy:     percentage,
		EnergyFull: 100,
		EnergyRate: 10,
	}}
}

func testConfig(raw *config.RawFileConfig) config.Config {
	if raw == nil {
		raw = &config.RawFileConfig{}
	}
	if raw.EmitOnStart == nil {
		raw.EmitOnStart = ptr.To(false)
	}
	return config.NewFileFromConfig(raw, "")
}

func readLines(t *testing.T, out *bytes.Buffer) []status.Line {
	t.Helper()
	var lines []status.Line
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var l status.Line
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l), "line %q", sc.Text())
		lines = append(lines, l)
	}
	return lines
}

func TestLoopEndToEnd(t *testing.T) {
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(50), discharging(15), discharging(5)}}
	trigger := &fakeTrigger{events: 3, err: errors.New("monitor exited")}
	notifier := &fakeNotifier{}
	out := &bytes.Buffer{}

	loop := NewLoop(testConfig(nil), source, notifier, out, nil)
	err := loop.Run(context.Background(), trigger)
	assert.EqualError(t, err, "monitor exited")
	assert.True(t, trigger.closed)

	lines := readLines(t, out)
	require.Len(t, lines, 3)
	assert.Equal(t, "normal", lines[0].Class)
	assert.Equal(t, "low", lines[1].Class)
	assert.Equal(t, "critical", lines[2].Class)
	assert.Equal(t, "50% (5 hours)", lines[0].Tooltip)
	assert.Equal(t, "5% (30 minutes)", lines[2].Tooltip)

	// Entering Normal from the initial state notifies too, since an estimate
	// is available right away.
	require.Len(t, notifier.sent, 3)
	assert.Equal(t, "Battery Discharging", notifier.sent[0].Title)
	assert.Equal(t, status.Notification{
		Title:   "Battery Low",
		Body:    "Battery is at 15%. Will be empty in 1 hour and 30 minutes.",
		Urgency: status.UrgencyCritical,
	}, notifier.sent[1])
	assert.Equal(t, status.Notification{
		Title:   "Battery Very Low",
		Body:    "Battery is at 5%. Will be empty in 30 minutes.",
		Urgency: status.UrgencyCritical,
	}, notifier.sent[2])

	last, ok := loop.Last()
	require.True(t, ok)
	assert.Equal(t, "critical", last.State)
	assert.True(t, last.Notified)
	assert.Equal(t, 3, loop.Recorder().GetRecordsIn(time.Minute))
}

func TestLoopNotifiesOncePerState(t *testing.T) {
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(15), discharging(14), discharging(13)}}
	notifier := &fakeNotifier{}
	out := &bytes.Buffer{}

	loop := NewLoop(testConfig(nil), source, notifier, out, nil)
	err := loop.Run(context.Background(), &fakeTrigger{events: 3, err: errors.New("done")})
	require.Error(t, err)

	assert.Len(t, readLines(t, out), 3)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Battery Low", notifier.sent[0].Title)
}

func TestLoopDefersNotificationWithoutRate(t *testing.T) {
	noRate := discharging(40)
	noRate[0].EnergyRate = 0
	source := &fakeSource{polls: [][]powerinfo.Reading{noRate, discharging(40)}}
	notifier := &fakeNotifier{}
	out := &bytes.Buffer{}

	loop := NewLoop(testConfig(nil), source, notifier, out, nil)
	_ = loop.Run(context.Background(), &fakeTrigger{events: 2, err: errors.New("done")})

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "40%", lines[0].Tooltip)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Battery Discharging", notifier.sent[0].Title)
}

func TestLoopEmitOnStart(t *testing.T) {
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(80)}}
	out := &bytes.Buffer{}

	loop := NewLoop(testConfig(&config.RawFileConfig{EmitOnStart: ptr.To(true)}), source, &fakeNotifier{}, out, nil)
	err := loop.Run(context.Background(), &fakeTrigger{err: errors.New("done")})
	assert.EqualError(t, err, "done")

	lines := readLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "normal", lines[0].Class)
}

func TestLoopStopsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trigger := &fakeTrigger{err: context.Canceled}
	loop := NewLoop(testConfig(nil), &fakeSource{}, &fakeNotifier{}, &bytes.Buffer{}, nil)
	assert.NoError(t, loop.Run(ctx, trigger))
	assert.True(t, trigger.closed)
}

func TestLoopTriggerStopsWithoutError(t *testing.T) {
	loop := NewLoop(testConfig(nil), &fakeSource{}, &fakeNotifier{}, &bytes.Buffer{}, nil)
	assert.Error(t, loop.Run(context.Background(), &fakeTrigger{}))
}

func TestLoopNotificationFailure(t *testing.T) {
	boom := errors.New("org.freedesktop.DBus.Error.ServiceUnknown")

	tests := []struct {
		name    string
		policy  config.NotificationFailure
		wantErr bool
		lines   int
	}{
		{name: "fatal", policy: config.NotificationFailureFatal, wantErr: true, lines: 0},
		{name: "warn", policy: config.NotificationFailureWarn, wantErr: false, lines: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{polls: [][]powerinfo.Reading{discharging(50), discharging(49)}}
			notifier := &fakeNotifier{err: boom}
			out := &bytes.Buffer{}

			conf := testConfig(&config.RawFileConfig{NotificationFailure: ptr.To(tt.policy)})
			loop := NewLoop(conf, source, notifier, out, nil)
			err := loop.Run(context.Background(), &fakeTrigger{events: 2, err: errors.New("done")})

			if tt.wantErr {
				assert.ErrorIs(t, err, boom)
			} else {
				assert.EqualError(t, err, "done")
			}
			assert.Len(t, readLines(t, out), tt.lines)
			// One attempt per state either way.
			assert.Len(t, notifier.sent, 1)
		})
	}
}

func TestLoopNotificationsDisabled(t *testing.T) {
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(5)}}
	notifier := &fakeNotifier{}
	out := &bytes.Buffer{}

	conf := testConfig(&config.RawFileConfig{Notifications: ptr.To(false)})
	loop := NewLoop(conf, source, notifier, out, nil)
	require.NoError(t, loop.Tick(context.Background()))

	assert.Empty(t, notifier.sent)
	assert.Len(t, readLines(t, out), 1)
}

func TestLoopSkipsNoBattery(t *testing.T) {
	source := &fakeSource{
		polls: [][]powerinfo.Reading{nil, nil, discharging(60)},
		errs:  []error{powerinfo.ErrNoBattery, powerinfo.ErrNoBattery},
	}
	out := &bytes.Buffer{}

	loop := NewLoop(testConfig(nil), source, &fakeNotifier{}, out, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, loop.Tick(context.Background()))
	}

	lines := readLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "normal", lines[0].Class)
}

func TestLoopFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeSource
		wantErr error
	}{
		{
			name:    "source error",
			source:  &fakeSource{errs: []error{powerinfo.ErrUnknownState}},
			wantErr: powerinfo.ErrUnknownState,
		},
		{
			name: "zero capacity",
			source: &fakeSource{polls: [][]powerinfo.Reading{{{
				States: []powerinfo.DeviceState{powerinfo.Discharging},
				Energy: 10,
			}}}},
			wantErr: powerinfo.ErrZeroCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			loop := NewLoop(testConfig(nil), tt.source, &fakeNotifier{}, out, nil)
			err := loop.Tick(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, out.Len())
		})
	}
}

func TestLoopThresholdsFollowConfig(t *testing.T) {
	conf := testConfig(nil)
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(20), discharging(20)}}
	out := &bytes.Buffer{}
	loop := NewLoop(conf, source, &fakeNotifier{}, out, nil)

	require.NoError(t, loop.Tick(context.Background()))
	conf.SetLowThreshold(25)
	require.NoError(t, loop.Tick(context.Background()))

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, "normal", lines[0].Class)
	assert.Equal(t, "low", lines[1].Class)
}

func TestLoopPublishesEvents(t *testing.T) {
	hub := events.NewEventHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(50)}}
	loop := NewLoop(testConfig(nil), source, &fakeNotifier{}, &bytes.Buffer{}, hub)
	require.NoError(t, loop.Tick(context.Background()))

	ev := <-ch
	assert.Equal(t, events.StatusTransition, ev.Name)
	tr, err := events.DecodeAs[events.StatusTransitionEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "uninitialized", tr.From)
	assert.Equal(t, "normal", tr.To)
	assert.True(t, tr.Notified)

	ev = <-ch
	assert.Equal(t, events.StatusLine, ev.Name)
	line, err := events.DecodeAs[events.StatusLineEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "normal", line.Class)
	assert.Equal(t, "50% (5 hours)", line.Tooltip)
}

func TestTickerTrigger(t *testing.T) {
	fast := newTickerTrigger(context.Background(), time.Millisecond)
	defer fast.Close()
	assert.True(t, fast.Next())

	ctx, cancel := context.WithCancel(context.Background())
	slow := newTickerTrigger(ctx, time.Hour)
	defer slow.Close()
	cancel()
	assert.False(t, slow.Next())
	assert.ErrorIs(t, slow.Err(), context.Canceled)
}
