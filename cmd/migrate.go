package cmd

import (
	"example.com/backstage/services/fridge/internal/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dbs, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer dbs.Close()

		log.Info().Msg("Running database migrations...")
		if err := dbs.Migrate(); err != nil {
			return err
		}

		log.Info().Msg("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
