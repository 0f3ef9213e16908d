package config

import "time"

// Source selects where battery readings come from.
type Source string

const (
	// SourceUpower polls upower on every `upower --monitor` event.
	SourceUpower Source = "upower"
	// SourceSysfs reads the kernel directly on a fixed interval.
	SourceSysfs Source = "sysfs"
)

// NotificationFailure decides what happens when a notification cannot be
// delivered.
type NotificationFailure string

const (
	// NotificationFailureFatal stops the daemon.
	NotificationFailureFatal NotificationFailure = "fatal"
	// NotificationFailureWarn logs the failure and keeps going.
	NotificationFailureWarn NotificationFailure = "warn"
)

type Config interface {
	UpowerPath() string
	Source() Source
	PollInterval() time.Duration
	LowThreshold() float64
	CriticalThreshold() float64
	Notifications() bool
	NotificationFailure() NotificationFailure
	AppName() string
	EmitOnStart() bool
	StatusSocket() string

	SetLowThreshold(float64)
	SetCriticalThreshold(float64)
	SetNotifications(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
