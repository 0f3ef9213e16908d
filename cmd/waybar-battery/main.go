package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/waybar-battery/pkg/client"
	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/upower"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath()
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	// stdout belongs to waybar.
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, upower.ErrNotInstalled):
		fmt.Fprintln(os.Stderr, "\nError: upower is not installed")
		fmt.Fprintln(os.Stderr, "  - Install upower, or set \"upowerPath\" in the config")
		fmt.Fprintln(os.Stderr, "  - Or set \"source\": \"sysfs\" to read batteries without upower")
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: waybar-battery daemon is not running")
		fmt.Fprintln(os.Stderr, "Is \"statusSocket\" set in the config, and is waybar running the daemon?")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - The status socket belongs to another user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waybar-battery",
		Short: "waybar-battery reports battery status to waybar and warns when it runs low",
		Long: `waybar-battery reports battery status to waybar and warns when it runs low.

Run it as the exec command of a waybar custom module with "return-type": "json".
Every time upower reports a change, one JSON line with the battery icon, a CSS
class (charging, normal, low, critical) and a tooltip is printed to stdout.
Desktop notifications are sent when the battery enters a new state.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
		RunE: runDaemon,
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")

	cmd.AddCommand(
		NewVersionCommand(),
		NewStatusCommand(),
		NewEventsCommand(),
		NewLowThresholdCommand(),
		NewCriticalThresholdCommand(),
		NewNotificationsCommand(),
	)

	return cmd
}
