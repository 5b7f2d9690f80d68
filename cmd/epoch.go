package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/shutdown"
	"github.com/epochledger/epochledger/pkg/ledger"
	"github.com/epochledger/epochledger/pkg/weights"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var epochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Create, fund, curate and close epochs",
}

var epochCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an open epoch using the configured weight file",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			if err := cfg.ValidateScope(); err != nil {
				return err
			}
			if cfg.LedgerConfig.WeightConfigFile == "" {
				return fmt.Errorf("%s is required", config.LedgerWeightConfigFile)
			}
			wc, err := weights.LoadWeightConfigFile(cfg.LedgerConfig.WeightConfigFile)
			if err != nil {
				return err
			}
			start, err := time.Parse(time.RFC3339, viper.GetString(config.EpochPeriodStart))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", config.EpochPeriodStart, err)
			}
			end, err := time.Parse(time.RFC3339, viper.GetString(config.EpochPeriodEnd))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", config.EpochPeriodEnd, err)
			}

			epoch, err := lc.ledger.CreateEpoch(ctx, &ledger.CreateEpochRequest{
				PeriodStart: start,
				PeriodEnd:   end,
				Weights:     wc,
			})
			if err != nil {
				return err
			}
			return printJSON(epoch)
		})
	},
}

var epochSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed curations for every event in the epoch's window",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			inserted, err := lc.ledger.SeedCurations(ctx, viper.GetUint64(config.EpochId))
			if err != nil {
				return err
			}
			l.Sugar().Infow("Seeded curations", zap.Int64("inserted", inserted))
			return nil
		})
	},
}

var epochCurateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Include or exclude a single event from an open epoch",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			eventId := viper.GetString(config.CurationEventId)
			if eventId == "" {
				return fmt.Errorf("%s is required", config.CurationEventId)
			}
			return lc.ledger.SetCurationIncluded(ctx, viper.GetUint64(config.EpochId), eventId, viper.GetBool(config.CurationIncluded))
		})
	},
}

var epochRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute allocations from the epoch's included curations",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			rows, err := lc.ledger.RecomputeAllocations(ctx, viper.GetUint64(config.EpochId))
			if err != nil {
				return err
			}
			return printJSON(rows)
		})
	},
}

var epochFundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Add a pool component to an open epoch",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			inputs := map[string]any{}
			if raw := viper.GetString(config.PoolInputs); raw != "" {
				if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
					return fmt.Errorf("invalid %s: %w", config.PoolInputs, err)
				}
			}
			component, err := lc.ledger.InsertPoolComponent(ctx, viper.GetUint64(config.EpochId), &ledger.PoolComponentRequest{
				ComponentId:      viper.GetString(config.PoolComponentId),
				AlgorithmVersion: viper.GetString(config.PoolAlgorithm),
				Inputs:           inputs,
				AmountCredits:    viper.GetInt64(config.PoolAmount),
			})
			if err != nil {
				return err
			}
			return printJSON(component)
		})
	},
}

var epochCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close an epoch and publish its payout statement",
	Run: func(cmd *cobra.Command, args []string) {
		runLedgerCommand(cmd, func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error {
			epochId := viper.GetUint64(config.EpochId)
			res, err := lc.ledger.RunJob(ctx, &ledger.JobRequest{
				EpochId:          epochId,
				Operation:        ledger.Operation_Close,
				PoolTotalCredits: viper.GetInt64(config.EpochPoolTotal),
			})
			if err != nil {
				return err
			}
			if res.Skipped {
				l.Sugar().Infow("Epoch already closed", zap.Uint64("epochId", epochId))
			}
			statement, err := lc.store.GetPayoutStatement(ctx, cfg.LedgerConfig.NodeId, epochId)
			if err != nil {
				return err
			}
			return printJSON(statement)
		})
	},
}

// runLedgerCommand wires the ledger for a one-shot command and cancels it on SIGINT or SIGTERM.
func runLedgerCommand(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, lc *ledgerComponents, l *zap.Logger) error) {
	initCommandFlags(cmd)
	cfg := config.NewConfig()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Console: true})

	ctx, cancel := shutdown.WithSignalCancel(context.Background(), l)
	defer cancel()

	lc, err := setupLedger(cfg, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup ledger", zap.Error(err))
	}
	defer lc.db.Close()

	if err := fn(ctx, cfg, lc, l); err != nil {
		l.Sugar().Fatalw("Command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	epochCmd.AddCommand(epochCreateCmd)
	epochCmd.AddCommand(epochSeedCmd)
	epochCmd.AddCommand(epochCurateCmd)
	epochCmd.AddCommand(epochRecomputeCmd)
	epochCmd.AddCommand(epochFundCmd)
	epochCmd.AddCommand(epochCloseCmd)

	epochCreateCmd.Flags().String(config.EpochPeriodStart, "", `Inclusive period start, RFC3339 (required)`)
	epochCreateCmd.Flags().String(config.EpochPeriodEnd, "", `Exclusive period end, RFC3339 (required)`)

	for _, c := range []*cobra.Command{epochSeedCmd, epochCurateCmd, epochRecomputeCmd, epochFundCmd, epochCloseCmd} {
		c.Flags().Uint64(config.EpochId, 0, `Epoch id (required)`)
	}

	epochCurateCmd.Flags().String(config.CurationEventId, "", `Activity event id (required)`)
	epochCurateCmd.Flags().Bool(config.CurationIncluded, true, `Whether the event counts toward allocations`)

	epochFundCmd.Flags().String(config.PoolComponentId, "", `Pool component id, unique per epoch (required)`)
	epochFundCmd.Flags().String(config.PoolAlgorithm, "v1", `Version of the algorithm that produced the amount`)
	epochFundCmd.Flags().Int64(config.PoolAmount, 0, `Credits contributed by this component`)
	epochFundCmd.Flags().String(config.PoolInputs, "", `JSON object of the inputs used to compute the amount`)

	epochCloseCmd.Flags().Int64(config.EpochPoolTotal, 0, `Expected pool total, must equal the sum of pool components`)
}
