// Package notify delivers desktop notifications through the freedesktop
// notification service on the session bus.
package notify

import (
	"context"
	"io"
	"sync"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/status"
)

const (
	dbusName      = "org.freedesktop.Notifications"
	dbusPath      = "/org/freedesktop/Notifications"
	dbusNotify    = dbusName + ".Notify"
	defaultExpire = int32(-1)
)

// Urgency hint values of org.freedesktop.Notifications.
const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n status.Notification) error
}

// caller is the subset of dbus.BusObject used to send notifications.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBus sends notifications to org.freedesktop.Notifications.
type DBus struct {
	conn    *dbus.Conn
	obj     caller
	appName string
}

// NewDBus connects to the session bus.
func NewDBus(appName string) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to session bus")
	}

	return &DBus{
		conn:    conn,
		obj:     conn.Object(dbusName, dbusPath),
		appName: appName,
	}, nil
}

// Notify shows n and waits for the notification server to accept it.
func (d *DBus) Notify(ctx context.Context, n status.Notification) error {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyHint(n.Urgency)),
	}

	call := d.obj.CallWithContext(ctx, dbusNotify, 0,
		d.appName,     // app_name
		uint32(0),     // replaces_id
		"",            // app_icon
		n.Title,       // summary
		n.Body,        // body
		[]string{},    // actions
		hints,         // hints
		defaultExpire, // expire_timeout
	)
	if call.Err != nil {
		return pkgerrors.Wrapf(call.Err, "failed to send notification %q", n.Title)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return pkgerrors.Wrap(err, "unexpected reply from notification server")
	}

	logrus.WithFields(logrus.Fields{
		"id":      id,
		"title":   n.Title,
		"urgency": n.Urgency,
	}).Debug("notification sent")

	return nil
}

// Close closes the bus connection.
func (d *DBus) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func urgencyHint(u status.Urgency) byte {
	if u == status.UrgencyCritical {
		return urgencyCritical
	}
	return urgencyNormal
}

// Dial connects a DBus notifier.
func Dial(appName string) (Notifier, error) {
	d, err := NewDBus(appName)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Lazy connects on first use and retries on every notification until a
// connection succeeds, so notifications enabled by a config reload or a
// notification service started late are still delivered.
type Lazy struct {
	appName string
	dial    func(appName string) (Notifier, error)

	mu sync.Mutex
	n  Notifier
}

func NewLazy(appName string, dial func(appName string) (Notifier, error)) *Lazy {
	if dial == nil {
		dial = Dial
	}
	return &Lazy{
		appName: appName,
		dial:    dial,
	}
}

// Connect connects now if not connected yet.
func (l *Lazy) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.connectLocked()
}

func (l *Lazy) connectLocked() error {
	if l.n != nil {
		return nil
	}

	n, err := l.dial(l.appName)
	if err != nil {
		return err
	}
	logrus.WithField("appName", l.appName).Debug("connected to notification service")
	l.n = n
	return nil
}

func (l *Lazy) Notify(ctx context.Context, n status.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.connectLocked(); err != nil {
		return err
	}
	return l.n.Notify(ctx, n)
}

// Close closes the connection, if any.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.n.(io.Closer)
	l.n = nil
	if !ok {
		return nil
	}
	return c.Close()
}
