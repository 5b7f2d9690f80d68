package cmd

import (
	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database if needed and apply pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		db, _, err := setupDatabase(cfg, l, true)
		if err != nil {
			l.Sugar().Fatalw("Failed to migrate database", zap.Error(err))
		}
		defer db.Close()

		l.Sugar().Infow("Database is up to date", zap.String("database", cfg.DatabaseConfig.DbName))
	},
}
