package main

import (
	"time"

	"taskflow-sync-server/internal/metadata"
	"taskflow-sync-server/internal/service"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var compactOlderThan time.Duration

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Delete change records older than the retention window",
	Long: `Delete change records older than --older-than (SYNC_RETENTION by default).

Clients that stay offline longer than the window miss the deleted changes, and
an entity whose records are all deleted counts as version 0 again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		olderThan := compactOlderThan
		if olderThan == 0 {
			olderThan = a.cfg.Sync.Retention
		}

		teamService := service.NewTeamService(a.teams, a.users, a.sharedTasks)
		deltaService := service.NewDeltaSyncService(
			a.changeLog,
			a.sharedTasks,
			teamService,
			metadata.NewExtractor(a.codec),
			service.DeltaSyncConfig{
				PullHorizon:     a.cfg.Sync.PullHorizon,
				ChangesLookback: a.cfg.Sync.ChangesLookback,
			},
		)

		deleted, err := deltaService.Compact(cmd.Context(), olderThan)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{"older_than": olderThan, "deleted": deleted}).Info("compaction finished")
		return nil
	},
}

func init() {
	compactCmd.Flags().DurationVar(&compactOlderThan, "older-than", 0, "delete records older than this age (default SYNC_RETENTION)")
	rootCmd.AddCommand(compactCmd)
}
