package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
	"github.com/charlie0129/waybar-battery/pkg/notify"
	"github.com/charlie0129/waybar-battery/pkg/powerinfo"
	"github.com/charlie0129/waybar-battery/pkg/status"
	"github.com/charlie0129/waybar-battery/pkg/upower"
	"github.com/charlie0129/waybar-battery/pkg/utils/ptr"
	"github.com/charlie0129/waybar-battery/pkg/version"
)

// fakeUpower answers -e, -i and --monitor like upower on a laptop with one
// discharging battery. The monitor prints two events and exits.
const fakeUpowerScript = `#!/bin/sh
case "$1" in
-e)
	echo /org/freedesktop/UPower/devices/line_power_AC
	echo /org/freedesktop/UPower/devices/battery_BAT0
	;;
-i)
	echo "  native-path:          BAT0"
	echo "  battery"
	echo "    state:               discharging"
	echo "    energy:              30 Wh"
	echo "    energy-full:         60 Wh"
	echo "    energy-rate:         15 W"
	;;
--monitor)
	echo "Monitoring activity from the power daemon. Press Ctrl+C to cancel."
	echo "[10:00:00.000]	device changed:     /org/freedesktop/UPower/devices/battery_BAT0"
	exit 0
	;;
esac
`

func TestRunUpower(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "upower")
	require.NoError(t, os.WriteFile(bin, []byte(fakeUpowerScript), 0o755))

	conf := config.NewFileFromConfig(&config.RawFileConfig{
		UpowerPath:    ptr.To(bin),
		Notifications: ptr.To(false),
	}, "")
	out := &bytes.Buffer{}

	err := Run(context.Background(), conf, out)
	assert.ErrorIs(t, err, upower.ErrMonitorExited)

	// One line on start and one per monitor event.
	lines := readLines(t, out)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, "normal", l.Class)
		assert.Equal(t, "50% (2 hours)", l.Tooltip)
	}
}

func TestRunUpowerNotInstalled(t *testing.T) {
	conf := config.NewFileFromConfig(&config.RawFileConfig{
		UpowerPath:    ptr.To(filepath.Join(t.TempDir(), "upower")),
		Notifications: ptr.To(false),
		EmitOnStart:   ptr.To(false),
	}, "")

	err := Run(context.Background(), conf, &bytes.Buffer{})
	assert.ErrorIs(t, err, upower.ErrNotInstalled)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conf := config.NewFileFromConfig(&config.RawFileConfig{
		Source:        ptr.To(config.SourceSysfs),
		Notifications: ptr.To(false),
		EmitOnStart:   ptr.To(false),
	}, "")

	assert.NoError(t, Run(ctx, conf, &bytes.Buffer{}))
}

func stubDialNotifier(t *testing.T, dial func(string) (notify.Notifier, error)) {
	t.Helper()
	orig := dialNotifier
	dialNotifier = dial
	t.Cleanup(func() { dialNotifier = orig })
}

func TestNotificationsEnabledByReload(t *testing.T) {
	fn := &fakeNotifier{}
	dials := 0
	stubDialNotifier(t, func(string) (notify.Notifier, error) {
		dials++
		return fn, nil
	})

	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"notifications": false}`), 0o644))
	conf, err := config.NewFile(p)
	require.NoError(t, err)

	n, err := newNotifier(conf)
	require.NoError(t, err)
	defer n.Close()
	assert.Zero(t, dials)

	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(50), discharging(5)}}
	out := &bytes.Buffer{}
	loop := NewLoop(conf, source, n, out, nil)

	require.NoError(t, loop.Tick(context.Background()))
	assert.Empty(t, fn.sent)

	require.NoError(t, os.WriteFile(p, []byte(`{"notifications": true}`), 0o644))
	require.NoError(t, conf.Load())

	require.NoError(t, loop.Tick(context.Background()))
	assert.Equal(t, 1, dials)
	require.Len(t, fn.sent, 1)
	assert.Equal(t, "Battery Very Low", fn.sent[0].Title)
}

func TestNewNotifierBusUnavailable(t *testing.T) {
	busDown := errors.New("failed to connect to session bus")

	tests := []struct {
		name    string
		policy  config.NotificationFailure
		wantErr bool
	}{
		{name: "fatal", policy: config.NotificationFailureFatal, wantErr: true},
		{name: "warn", policy: config.NotificationFailureWarn, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := &fakeNotifier{}
			up := false
			stubDialNotifier(t, func(string) (notify.Notifier, error) {
				if !up {
					return nil, busDown
				}
				return fn, nil
			})

			conf := testConfig(&config.RawFileConfig{NotificationFailure: ptr.To(tt.policy)})
			n, err := newNotifier(conf)
			if tt.wantErr {
				assert.ErrorIs(t, err, busDown)
				return
			}
			require.NoError(t, err)

			// The service shows up later and the next notification goes through.
			up = true
			loop := NewLoop(conf, &fakeSource{polls: [][]powerinfo.Reading{discharging(12)}}, n, &bytes.Buffer{}, nil)
			require.NoError(t, loop.Tick(context.Background()))
			require.Len(t, fn.sent, 1)
			assert.Equal(t, "Battery Low", fn.sent[0].Title)
		})
	}
}

func newTestServer(t *testing.T) (*Server, *Loop) {
	t.Helper()
	return newTestServerAt(t, filepath.Join(t.TempDir(), "config.json"))
}

func newTestServerAt(t *testing.T, configPath string) (*Server, *Loop) {
	t.Helper()
	hub := events.NewEventHub()
	source := &fakeSource{polls: [][]powerinfo.Reading{discharging(42)}}
	conf := config.NewFileFromConfig(&config.RawFileConfig{EmitOnStart: ptr.To(false)}, configPath)
	loop := NewLoop(conf, source, &fakeNotifier{}, &bytes.Buffer{}, hub)
	return NewServer(conf, loop, hub), loop
}

func request(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	s.setupRoutes().ServeHTTP(w, req)
	return w
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	return request(t, s, http.MethodGet, path, "")
}

func TestServerStatus(t *testing.T) {
	s, loop := newTestServer(t)

	w := get(t, s, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, loop.Tick(context.Background()))

	w = get(t, s, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var st status.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "normal", st.State)
	assert.Equal(t, "normal", st.Line.Class)
	assert.Equal(t, 42.0, st.Snapshot.Percentage)

	w = get(t, s, "/recent-events")
	require.Equal(t, http.StatusOK, w.Code)
	var activity status.Activity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	assert.Len(t, activity.Records, 1)
	assert.Equal(t, 1, activity.LastHour)
	assert.False(t, activity.Last.IsZero())
}

func TestServerSetConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	s, _ := newTestServerAt(t, p)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{name: "low", path: "/low-threshold", body: "25", wantCode: http.StatusCreated},
		{name: "critical", path: "/critical-threshold", body: "10", wantCode: http.StatusCreated},
		{name: "notifications", path: "/notifications", body: "false", wantCode: http.StatusCreated},
		{name: "low below critical", path: "/low-threshold", body: "5", wantCode: http.StatusBadRequest},
		{name: "critical above low", path: "/critical-threshold", body: "30", wantCode: http.StatusBadRequest},
		{name: "not a number", path: "/low-threshold", body: `"high"`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(t, s, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	assert.Equal(t, 25.0, s.conf.LowThreshold())
	assert.Equal(t, 10.0, s.conf.CriticalThreshold())
	assert.False(t, s.conf.Notifications())

	// The changes were written back to the config file.
	saved, err := config.NewFile(p)
	require.NoError(t, err)
	assert.Equal(t, 25.0, saved.LowThreshold())
	assert.Equal(t, 10.0, saved.CriticalThreshold())
	assert.False(t, saved.Notifications())
}

func TestServerConfigAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(t, s, "/config")
	require.Equal(t, http.StatusOK, w.Code)
	var raw config.RawFileConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.NotNil(t, raw.LowThreshold)
	assert.Equal(t, 16.0, *raw.LowThreshold)

	w = get(t, s, "/version")
	require.Equal(t, http.StatusOK, w.Code)
	var v string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, version.Version, v)
}

func TestServerStartOnSocket(t *testing.T) {
	s, _ := newTestServer(t)
	sock := filepath.Join(t.TempDir(), "waybar-battery.sock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, sock))
	defer s.Shutdown()

	_, err := os.Stat(sock)
	assert.NoError(t, err)
}

func TestProbe(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "upower")
	require.NoError(t, os.WriteFile(bin, []byte(fakeUpowerScript), 0o755))

	conf := config.NewFileFromConfig(&config.RawFileConfig{
		UpowerPath:   ptr.To(bin),
		LowThreshold: ptr.To(60.0),
	}, "")

	r, err := Probe(context.Background(), conf)
	require.NoError(t, err)
	assert.Equal(t, "low", r.State)
	assert.Equal(t, "low", r.Line.Class)
	assert.Equal(t, 50.0, r.Snapshot.Percentage)
	assert.False(t, r.Notified)
}
