package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/pkg/ledgerCsv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage activity events",
}

var eventsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import activity events from a CSV or JSON file",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			if err := cfg.ValidateScope(); err != nil {
				return err
			}
			path := viper.GetString(config.EventsInputFile)
			if path == "" {
				return fmt.Errorf("%s is required", config.EventsInputFile)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			events, err := ledgerCsv.ReadActivityEvents(f, ledgerCsv.FormatFromPath(path))
			if err != nil {
				return err
			}

			bar := progressbar.Default(int64(len(events)), "importing events")
			for i, batch := range ledgerCsv.Batch(events, viper.GetInt(config.EventsBatchSize)) {
				// each batch is all-or-nothing; earlier batches stay committed
				if err := lc.ledger.InsertActivityEvents(ctx, batch); err != nil {
					return fmt.Errorf("batch %d: %w", i+1, err)
				}
				_ = bar.Add(len(batch))
			}
			_ = bar.Finish()

			l.Sugar().Infow("Imported activity events", zap.Int("count", len(events)))
			return nil
		})
	},
}

func init() {
	eventsCmd.AddCommand(eventsImportCmd)

	eventsImportCmd.Flags().String(config.EventsInputFile, "", `Path to a .csv or .json file of events (required)`)
	eventsImportCmd.Flags().Int(config.EventsBatchSize, 500, `Events inserted per transaction`)
}
