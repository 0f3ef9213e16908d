package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/waybar-battery/pkg/client"
	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/status"
)

// configChange is a config edit that can be applied by a running daemon or
// directly to the config file.
type configChange struct {
	desc string
	// check validates the change against the current config.
	check  func(conf config.Config) error
	local  func(conf config.Config)
	remote func(c *client.Client) (string, error)
}

// applyConfigChange asks the daemon to apply ch when it has a status socket.
// If there is no daemon to ask, the config file is edited instead and takes
// effect when the daemon starts or receives SIGHUP.
func applyConfigChange(ch configChange) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return err
	}
	if err := ch.check(conf); err != nil {
		return err
	}

	if sock := conf.StatusSocket(); sock != "" {
		ret, err := ch.remote(client.NewClient(sock))
		if err == nil {
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			logrus.Infof("successfully %s", ch.desc)
			return nil
		}
		if !errors.Is(err, client.ErrDaemonNotRunning) {
			return fmt.Errorf("failed to %s: %w", ch.desc, err)
		}
		logrus.Debug("daemon is not running, editing the config file")
	}

	ch.local(conf)
	if err := conf.Save(); err != nil {
		return err
	}
	logrus.Infof("successfully %s in %s", ch.desc, configPath)
	logrus.Info("a running daemon picks this up after SIGHUP or a restart")

	return nil
}

func parsePercentageArg(args []string, name string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one argument: %s", name)
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, args[0], err)
	}
	return v, nil
}

func NewLowThresholdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "low-threshold [percentage]",
		Short: "Set the low battery threshold",
		Long: `Set the low battery threshold.

Below this percentage the battery is shown as low and a "Battery Low"
notification is sent. It must be between the critical threshold and 100.`,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parsePercentageArg(args, "threshold")
			if err != nil {
				return err
			}

			return applyConfigChange(configChange{
				desc: "set low threshold to " + status.PercentageString(v),
				check: func(conf config.Config) error {
					return config.CheckThresholds(conf.CriticalThreshold(), v)
				},
				local: func(conf config.Config) { conf.SetLowThreshold(v) },
				remote: func(c *client.Client) (string, error) {
					return c.SetLowThreshold(v)
				},
			})
		},
	}
}

func NewCriticalThresholdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "critical-threshold [percentage]",
		Short: "Set the critical battery threshold",
		Long: `Set the critical battery threshold.

Below this percentage the battery is shown as critical and a "Battery Very
Low" notification is sent. It must be between 0 and the low threshold.`,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parsePercentageArg(args, "threshold")
			if err != nil {
				return err
			}

			return applyConfigChange(configChange{
				desc: "set critical threshold to " + status.PercentageString(v),
				check: func(conf config.Config) error {
					return config.CheckThresholds(v, conf.LowThreshold())
				},
				local: func(conf config.Config) { conf.SetCriticalThreshold(v) },
				remote: func(c *client.Client) (string, error) {
					return c.SetCriticalThreshold(v)
				},
			})
		},
	}
}

func NewNotificationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications [true|false]",
		Short: "Enable or disable desktop notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}

			return applyConfigChange(configChange{
				desc:  fmt.Sprintf("set notifications to %t", enabled),
				check: func(config.Config) error { return nil },
				local: func(conf config.Config) { conf.SetNotifications(enabled) },
				remote: func(c *client.Client) (string, error) {
					return c.SetNotifications(enabled)
				},
			})
		},
	}
}
