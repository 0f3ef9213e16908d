package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/daemon"
	"github.com/charlie0129/waybar-battery/pkg/version"
)

func runDaemon(cmd *cobra.Command, _ []string) error {
	logrus.WithFields(logrus.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
	}).Info("waybar-battery starting")

	conf, err := config.NewFile(configPath)
	if err != nil {
		return err
	}
	logrus.WithFields(conf.LogrusFields()).WithField("path", configPath).Infof("config loaded")

	return daemon.Run(cmd.Context(), conf, os.Stdout)
}
