package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		UpowerPath:          ptr.To("upower"),
		Source:              ptr.To(SourceUpower),
		PollInterval:        ptr.To(30),
		LowThreshold:        ptr.To(16.0),
		CriticalThreshold:   ptr.To(6.0),
		Notifications:       ptr.To(true),
		NotificationFailure: ptr.To(NotificationFailureFatal),
		AppName:             ptr.To("waybar-battery"),
		// upower --monitor prints nothing until something changes, so the
		// widget would stay empty without an initial line.
		EmitOnStart:  ptr.To(true),
		StatusSocket: ptr.To(""),
	}
)

var _ Config = &File{}

// DefaultPath returns $XDG_CONFIG_HOME/waybar-battery/config.json.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "waybar-battery", "config.json")
}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		UpowerPath:          ptr.To(c.UpowerPath()),
		Source:              ptr.To(c.Source()),
		PollInterval:        ptr.To(int(c.PollInterval() / time.Second)),
		LowThreshold:        ptr.To(c.LowThreshold()),
		CriticalThreshold:   ptr.To(c.CriticalThreshold()),
		Notifications:       ptr.To(c.Notifications()),
		NotificationFailure: ptr.To(c.NotificationFailure()),
		AppName:             ptr.To(c.AppName()),
		EmitOnStart:         ptr.To(c.EmitOnStart()),
		StatusSocket:        ptr.To(c.StatusSocket()),
	}

	return rawConfig, nil
}

type RawFileConfig struct {
	UpowerPath *string `json:"upowerPath,omitempty"`
	Source     *Source `json:"source,omitempty"`
	// PollInterval is in seconds and only used by the sysfs source.
	PollInterval        *int                 `json:"pollInterval,omitempty"`
	LowThreshold        *float64             `json:"lowThreshold,omitempty"`
	CriticalThreshold   *float64             `json:"criticalThreshold,omitempty"`
	Notifications       *bool                `json:"notifications,omitempty"`
	NotificationFailure *NotificationFailure `json:"notificationFailure,omitempty"`
	AppName             *string              `json:"appName,omitempty"`
	EmitOnStart         *bool                `json:"emitOnStart,omitempty"`
	StatusSocket        *string              `json:"statusSocket,omitempty"`
}

// CheckThresholds returns an error unless 0 <= critical <= low <= 100.
func CheckThresholds(critical, low float64) error {
	if math.IsNaN(critical) || math.IsNaN(low) || critical < 0 || low > 100 || critical > low {
		return fmt.Errorf("thresholds must satisfy 0 <= critical <= low <= 100, got critical=%v low=%v", critical, low)
	}
	return nil
}

// Validate checks that the values set in c make sense together with the
// defaults of those that are not.
func (c *RawFileConfig) Validate() error {
	low := ptr.Deref(c.LowThreshold, *defaultFileConfig.LowThreshold)
	critical := ptr.Deref(c.CriticalThreshold, *defaultFileConfig.CriticalThreshold)
	if err := CheckThresholds(critical, low); err != nil {
		return err
	}

	switch s := ptr.Deref(c.Source, *defaultFileConfig.Source); s {
	case SourceUpower, SourceSysfs:
	default:
		return fmt.Errorf("unknown source %q, must be %q or %q", s, SourceUpower, SourceSysfs)
	}

	switch p := ptr.Deref(c.NotificationFailure, *defaultFileConfig.NotificationFailure); p {
	case NotificationFailureFatal, NotificationFailureWarn:
	default:
		return fmt.Errorf("unknown notificationFailure %q, must be %q or %q", p, NotificationFailureFatal, NotificationFailureWarn)
	}

	if i := ptr.Deref(c.PollInterval, *defaultFileConfig.PollInterval); i <= 0 {
		return fmt.Errorf("pollInterval must be positive, got %d", i)
	}

	return nil
}

func (f *File) UpowerPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.UpowerPath, *defaultFileConfig.UpowerPath)
}

func (f *File) Source() Source {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.Source, *defaultFileConfig.Source)
}

func (f *File) PollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return time.Duration(ptr.Deref(f.c.PollInterval, *defaultFileConfig.PollInterval)) * time.Second
}

func (f *File) LowThreshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.LowThreshold, *defaultFileConfig.LowThreshold)
}

func (f *File) CriticalThreshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.CriticalThreshold, *defaultFileConfig.CriticalThreshold)
}

func (f *File) Notifications() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.Notifications, *defaultFileConfig.Notifications)
}

func (f *File) NotificationFailure() NotificationFailure {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.NotificationFailure, *defaultFileConfig.NotificationFailure)
}

func (f *File) AppName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.AppName, *defaultFileConfig.AppName)
}

func (f *File) EmitOnStart() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.EmitOnStart, *defaultFileConfig.EmitOnStart)
}

func (f *File) StatusSocket() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return ptr.Deref(f.c.StatusSocket, *defaultFileConfig.StatusSocket)
}

func (f *File) SetLowThreshold(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		panic("config is nil")
	}

	critical := ptr.Deref(f.c.CriticalThreshold, *defaultFileConfig.CriticalThreshold)
	if err := CheckThresholds(critical, v); err != nil {
		panic(err.Error())
	}
	f.c.LowThreshold = &v
}

func (f *File) SetCriticalThreshold(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		panic("config is nil")
	}

	low := ptr.Deref(f.c.LowThreshold, *defaultFileConfig.LowThreshold)
	if err := CheckThresholds(v, low); err != nil {
		panic(err.Error())
	}
	f.c.CriticalThreshold = &v
}

func (f *File) SetNotifications(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		panic("config is nil")
	}

	f.c.Notifications = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	// An invalid file leaves the previous config in place.
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}
	if f.filepath == "" {
		return pkgerrors.New("config has no file to save to")
	}

	if err := os.MkdirAll(filepath.Dir(f.filepath), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory of %s", f.filepath)
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"upowerPath":          f.UpowerPath(),
		"source":              f.Source(),
		"pollInterval":        f.PollInterval(),
		"lowThreshold":        f.LowThreshold(),
		"criticalThreshold":   f.CriticalThreshold(),
		"notifications":       f.Notifications(),
		"notificationFailure": f.NotificationFailure(),
		"appName":             f.AppName(),
		"emitOnStart":         f.EmitOnStart(),
		"statusSocket":        f.StatusSocket(),
	}
}
