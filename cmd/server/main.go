package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskflow-sync-server",
	Short: "Task synchronization backend for the TaskFlow mobile app",
	Long: `TaskFlow sync server keeps task, project and category data in step
across a user's devices and the teams they share work with.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
