package ledger

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/payouts"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
)

// CloseEpoch freezes an open epoch and publishes its payout statement.
//
// The state change and the statement are written in one transaction. The caller's
// pool total must equal the sum of the epoch's pool components; a mismatch is a
// conflict and nothing is adjusted. Of two concurrent closes exactly one succeeds.
func (ls *LedgerService) CloseEpoch(ctx context.Context, epochId uint64, poolTotalCredits int64) (statement *storage.PayoutStatement, err error) {
	ctx, span := ls.startSpan(ctx, "ledger.CloseEpoch", epochId)
	defer func() { endSpan(span, err) }()

	if poolTotalCredits < 0 {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrNegativeAmount, "pool total credits %d", poolTotalCredits)
	}
	start := time.Now()

	err = ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		epoch, err := tx.CloseEpoch(ctx, ls.NodeId(), epochId, poolTotalCredits, ls.now())
		if err != nil {
			return err
		}
		allocs, err := tx.ListAllocations(ctx, epoch.NodeId, epoch.Id)
		if err != nil {
			return err
		}
		built, err := payouts.BuildStatement(epoch, poolTotalCredits, allocs)
		if err != nil {
			return err
		}
		statement, err = tx.InsertPayoutStatement(ctx, built)
		return err
	})
	if err != nil {
		if ledgerErrors.IsKind(err, ledgerErrors.Kind_Conflict) {
			ls.incr(metricsTypes.Metric_Incr_CloseConflict, 1, ls.nodeLabels())
		}
		ls.logger.Sugar().Errorw("Failed to close epoch",
			zap.Uint64("epochId", epochId),
			zap.Int64("poolTotalCredits", poolTotalCredits),
			zap.Error(err),
		)
		return nil, err
	}

	ls.logger.Sugar().Infow("Closed epoch",
		zap.Uint64("epochId", epochId),
		zap.Int64("poolTotalCredits", poolTotalCredits),
		zap.String("allocationSetHash", statement.AllocationSetHash),
		zap.Int("payouts", len(statement.Payouts)),
	)
	ls.incr(metricsTypes.Metric_Incr_EpochClosed, 1, ls.nodeLabels())
	ls.gauge(metricsTypes.Metric_Gauge_LastClosedPoolTotal, float64(poolTotalCredits), ls.nodeLabels())
	ls.timing(metricsTypes.Metric_Timing_CloseDuration, start, ls.nodeLabels())
	ls.reportOpenEpochs(ctx)
	ls.publish(eventBusTypes.Event_EpochClosed, &eventBusTypes.EpochClosedData{
		NodeId:            ls.NodeId(),
		EpochId:           epochId,
		PoolTotalCredits:  poolTotalCredits,
		AllocationSetHash: statement.AllocationSetHash,
		PayoutCount:       len(statement.Payouts),
	})
	return statement, nil
}

// closeAlreadyApplied reports whether the epoch is already closed with the given
// pool total, which makes a retried close a no-op.
func (ls *LedgerService) closeAlreadyApplied(ctx context.Context, epochId uint64, poolTotalCredits int64) (bool, error) {
	epoch, err := ls.store.GetEpoch(ctx, ls.NodeId(), epochId)
	if err != nil || epoch == nil || !epoch.IsClosed() {
		return false, err
	}
	if epoch.PoolTotalCredits == nil || *epoch.PoolTotalCredits != poolTotalCredits {
		return false, nil
	}
	statement, err := ls.store.GetPayoutStatement(ctx, ls.NodeId(), epochId)
	if err != nil {
		return false, err
	}
	return statement != nil, nil
}
