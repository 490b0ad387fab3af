package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the subscribers schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB(db)

			logger.WithFields(logrus.Fields{
				"driver": cfg.DBDriver,
			}).Info("Schema migrated")
			return nil
		},
	}
}
