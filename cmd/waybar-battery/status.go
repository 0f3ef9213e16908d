package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/waybar-battery/pkg/client"
	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/daemon"
	"github.com/charlie0129/waybar-battery/pkg/status"
)

type statusData struct {
	report *status.Report
	config config.Config
	// activity is only known when asking a running daemon.
	activity *status.Activity
}

// fetchStatusData reads the batteries directly, or asks the daemon over its
// status socket when fromDaemon is set.
func fetchStatusData(cmd *cobra.Command, fromDaemon bool) (*statusData, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, err
	}

	if !fromDaemon {
		r, err := daemon.Probe(cmd.Context(), conf)
		if err != nil {
			return nil, err
		}
		return &statusData{report: &r, config: conf}, nil
	}

	sock := conf.StatusSocket()
	if sock == "" {
		return nil, fmt.Errorf("statusSocket is not set in %s", configPath)
	}
	apiClient := client.NewClient(sock)

	r, err := apiClient.GetStatus()
	if err != nil {
		return nil, err
	}
	raw, err := apiClient.GetConfig()
	if err != nil {
		return nil, err
	}
	activity, err := apiClient.GetRecentEvents()
	if err != nil {
		return nil, err
	}

	return &statusData{
		report:   r,
		config:   config.NewFileFromConfig(raw, ""),
		activity: activity,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	var (
		asJSON     bool
		fromDaemon bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current battery status",
		Long: `Print the current battery status.

By default the batteries are read once, the same way the daemon reads them.
With --daemon, the status last emitted by a running daemon is fetched from its
status socket instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData(cmd, fromDaemon)
			if err != nil {
				return err
			}

			if asJSON {
				return data.report.Line.Write(os.Stdout)
			}

			printStatus(cmd, data)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "print the waybar JSON line instead of a summary")
	f.BoolVar(&fromDaemon, "daemon", false, "ask the running daemon instead of reading the batteries")

	return cmd
}

func printStatus(cmd *cobra.Command, data *statusData) {
	r := data.report
	s := r.Snapshot

	cmd.Println(bold("Battery status:"))
	cmd.Printf("  Current charge: %s\n", bold("%s", status.PercentageString(s.Percentage)))

	state := "full"
	switch {
	case s.Discharging:
		state = color.RedString("discharging")
	case s.Percentage < 100:
		state = color.GreenString("charging")
	}
	cmd.Printf("  State: %s (%s)\n", bold("%s", state), classColor(r.State))

	if s.HoursLeft != nil {
		verb := "full"
		if s.Discharging {
			verb = "empty"
		}
		if ts := status.TimeString(*s.HoursLeft); ts != "" {
			cmd.Printf("  Time to %s: %s\n", verb, bold("%s", ts))
		}
	}
	if a := data.activity; a != nil {
		cmd.Printf("  Notified: %s\n", bool2Text(r.Notified))
		cmd.Printf("  Last update: %s\n", bold("%s", r.Time.Local().Format("15:04:05")))
		if !a.Last.IsZero() {
			cmd.Printf("  Last event: %s\n", bold("%s", a.Last.Local().Format("15:04:05")))
		}
		cmd.Printf("  Events in the last hour: %s\n", bold("%d", a.LastHour))
	}

	cmd.Println()

	conf := data.config
	cmd.Println(bold("Configuration:"))
	cmd.Printf("  Source: %s\n", bold("%s", conf.Source()))
	cmd.Printf("  Low threshold: %s\n", bold("%s", status.PercentageString(conf.LowThreshold())))
	cmd.Printf("  Critical threshold: %s\n", bold("%s", status.PercentageString(conf.CriticalThreshold())))
	cmd.Printf("  Notifications: %s\n", bool2Text(conf.Notifications()))
	cmd.Printf("  Exit on notification failure: %s\n", bool2Text(conf.NotificationFailure() == config.NotificationFailureFatal))
	if sock := conf.StatusSocket(); sock != "" {
		cmd.Printf("  Status socket: %s\n", bold("%s", sock))
	}
}

func classColor(class string) string {
	switch class {
	case "critical":
		return color.New(color.Bold, color.FgRed).Sprint(class)
	case "low":
		return color.New(color.Bold, color.FgYellow).Sprint(class)
	case "charging":
		return color.New(color.Bold, color.FgGreen).Sprint(class)
	default:
		return class
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
