package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/waybar-battery/pkg/client"
	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
)

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow status changes of a running daemon",
		Long: `Follow status changes of a running daemon.

Needs "statusSocket" to be set in the config. Every emitted line and every
state transition is printed until the daemon stops or you press Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}
			sock := conf.StatusSocket()
			if sock == "" {
				return fmt.Errorf("statusSocket is not set in %s", configPath)
			}

			apiClient := client.NewClient(sock)
			if _, err := apiClient.GetVersion(); err != nil {
				return err
			}

			for ev := range apiClient.SubscribeEvents(cmd.Context()) {
				logrus.WithFields(logrus.Fields{
					"event": ev.Name,
					"data":  string(ev.Data),
				}).Debug("new event")

				switch ev.Name {
				case events.StatusLine:
					payload, err := events.DecodeAs[events.StatusLineEvent](ev)
					if err != nil {
						logrus.WithError(err).Errorf("failed to decode %s event", ev.Name)
						continue
					}
					cmd.Printf("%s  %s  %s\n", payload.Text, classColor(payload.Class), payload.Tooltip)
				case events.StatusTransition:
					payload, err := events.DecodeAs[events.StatusTransitionEvent](ev)
					if err != nil {
						logrus.WithError(err).Errorf("failed to decode %s event", ev.Name)
						continue
					}
					cmd.Printf("%s -> %s (notified: %s)\n", payload.From, classColor(payload.To), bool2Text(payload.Notified))
				}
			}

			return nil
		},
	}
}
