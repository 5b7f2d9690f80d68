package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/pkg/ledgerCsv"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Read published payout statements",
}

var statementExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a closed epoch's payout statement as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			epochId := viper.GetUint64(config.EpochId)
			epoch, err := lc.ledger.GetEpoch(ctx, epochId)
			if err != nil {
				return err
			}
			if !epoch.IsClosed() {
				return ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d is not closed", epochId)
			}
			statement, err := lc.store.GetPayoutStatement(ctx, cfg.LedgerConfig.NodeId, epochId)
			if err != nil {
				return err
			}
			if statement == nil {
				return ledgerErrors.New(ledgerErrors.Kind_Internal, ledgerErrors.ErrStatementNotFound, "closed epoch %d", epochId)
			}

			var w io.Writer = os.Stdout
			if path := viper.GetString(config.StatementOutputFile); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := ledgerCsv.WriteStatement(w, statement); err != nil {
				return fmt.Errorf("failed to write statement: %w", err)
			}
			return nil
		})
	},
}

func init() {
	statementCmd.AddCommand(statementExportCmd)

	statementExportCmd.Flags().Uint64(config.EpochId, 0, `Epoch id (required)`)
	statementExportCmd.Flags().String(config.StatementOutputFile, "", `Path to write the CSV to (default stdout)`)
}
