package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"subscribers-go/internal/config"
	"subscribers-go/internal/database"
	"subscribers-go/internal/logging"
	"subscribers-go/internal/repository"
)

var (
	cfg    config.Config
	logger *logging.ContextLogger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "subscribers",
		Short:         "Subscriber management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logger, err = logging.NewLoggerWithLevel(cfg.LogLevel)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		if logger != nil {
			logger.WithError(err).Error("Command failed")
		} else {
			fmt.Println("error:", err)
		}
		return err
	}
	return nil
}

// openRepository opens the configured database and brings the schema up to
// date. The caller owns the returned *gorm.DB.
func openRepository(ctx context.Context) (*repository.GormSubscriberRepository, *gorm.DB, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewGormSubscriberRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		closeDB(db)
		return nil, nil, err
	}
	return repo, db, nil
}

// closeDB closes db and logs rather than returns the error; it runs in
// defers after the command has already produced its result.
func closeDB(db *gorm.DB) {
	logClose("database", func() error { return database.Close(db) })
}

func logClose(what string, close func() error) {
	if err := close(); err != nil {
		logger.WithError(err).Warnf("Error closing %s", what)
	}
}
