package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/shutdown"
	ledgerClient "github.com/epochledger/epochledger/pkg/clients/ledger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const verifyPageSize = 100

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute published statements from a ledger node's public API",
	Long: `Fetches the allocations and statement of a closed epoch, reapportions the pool locally
and checks the allocation set hash and every payout against what was published.
Without --epoch.id every closed epoch is verified.`,
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Console: true})

		ctx, cancel := shutdown.WithSignalCancel(context.Background(), l)
		defer cancel()

		baseUrl := viper.GetString(config.VerifyLedgerUrl)
		if baseUrl == "" {
			l.Sugar().Fatalw("Missing ledger url", zap.String("flag", config.VerifyLedgerUrl))
		}
		client := ledgerClient.NewClient(&http.Client{Timeout: 30 * time.Second}, baseUrl, l)

		epochIds, err := epochsToVerify(ctx, client, viper.GetUint64(config.EpochId))
		if err != nil {
			l.Sugar().Fatalw("Failed to list epochs", zap.Error(err))
		}

		failed := 0
		for _, epochId := range epochIds {
			res, err := client.VerifyEpoch(ctx, epochId)
			if err != nil {
				l.Sugar().Errorw("Failed to verify epoch", zap.Uint64("epochId", epochId), zap.Error(err))
				failed++
				continue
			}
			if !res.Ok() {
				l.Sugar().Errorw("Statement does not match recomputation",
					zap.Uint64("epochId", epochId),
					zap.Strings("mismatches", res.Mismatches),
				)
				failed++
				continue
			}
			fmt.Printf("epoch %d ok %s\n", epochId, res.AllocationSetHash)
		}
		if failed > 0 {
			l.Sugar().Errorw("Verification failed", zap.Int("failed", failed), zap.Int("total", len(epochIds)))
			os.Exit(1)
		}
	},
}

func epochsToVerify(ctx context.Context, client *ledgerClient.Client, epochId uint64) ([]uint64, error) {
	if epochId != 0 {
		return []uint64{epochId}, nil
	}
	ids := make([]uint64, 0)
	for offset := 0; ; offset += verifyPageSize {
		page, err := client.ListEpochs(ctx, verifyPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Epochs {
			ids = append(ids, e.Id)
		}
		if len(page.Epochs) < verifyPageSize {
			return ids, nil
		}
	}
}

func init() {
	verifyCmd.Flags().String(config.VerifyLedgerUrl, "", `Base url of the ledger node, e.g. "http://localhost:7101" (required)`)
	verifyCmd.Flags().Uint64(config.EpochId, 0, `Only verify this epoch`)
}
