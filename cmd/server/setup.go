package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the database and its indexes",
	Long: `Create the CouchDB database and the Mango indexes the server queries
through. With LEDGER_DRIVER=sqlite the SQLite ledger file is created too.
Running setup again is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ensureSchema(cmd.Context()); err != nil {
			return err
		}

		log.WithField("db", a.cfg.Database.Name).Info("setup complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
