package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/allocations"
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/weights"
	"go.uber.org/zap"
)

// RecomputeAllocations replaces the allocation set of an open epoch with the one
// derived from its included curations and frozen weight table. Running it twice
// over the same curations leaves identical rows.
func (ls *LedgerService) RecomputeAllocations(ctx context.Context, epochId uint64) (rows []*storage.Allocation, err error) {
	ctx, span := ls.startSpan(ctx, "ledger.RecomputeAllocations", epochId)
	defer func() { endSpan(span, err) }()

	start := time.Now()
	var unresolved int
	totalUnits := new(big.Int)

	err = ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		epoch, err := ls.getOpenEpoch(ctx, tx, epochId)
		if err != nil {
			return err
		}
		wc, err := weights.NewWeightConfig(epoch.WeightConfig.Data())
		if err != nil {
			return err
		}
		snapshot, err := tx.ListCurationSnapshot(ctx, epoch.NodeId, epoch.Id)
		if err != nil {
			return err
		}

		computed, skipped, err := allocations.Compute(snapshot, wc)
		if err != nil {
			return err
		}
		unresolved = skipped
		totalUnits = allocations.TotalUnits(computed)

		rows = allocations.ToStorageRows(epoch.Id, epoch.NodeId, computed)
		if err := tx.InsertAllocations(ctx, rows); err != nil {
			return err
		}
		userIds := make([]string, 0, len(rows))
		for _, r := range rows {
			userIds = append(userIds, r.UserId)
		}
		removed, err := tx.DeleteAllocationsNotIn(ctx, epoch.NodeId, epoch.Id, userIds)
		if err != nil {
			return err
		}
		if removed > 0 {
			ls.logger.Sugar().Infow("Removed stale allocations",
				zap.Uint64("epochId", epochId),
				zap.Int64("removed", removed),
			)
		}
		return nil
	})
	if err != nil {
		ls.logger.Sugar().Errorw("Failed to recompute allocations", zap.Uint64("epochId", epochId), zap.Error(err))
		return nil, err
	}

	if unresolved > 0 {
		ls.logger.Sugar().Warnw("Skipped curations without a resolved user",
			zap.Uint64("epochId", epochId),
			zap.Int("count", unresolved),
		)
	}
	ls.logger.Sugar().Infow("Recomputed allocations",
		zap.Uint64("epochId", epochId),
		zap.Int("users", len(rows)),
		zap.String("totalUnits", totalUnits.String()),
	)
	ls.incr(metricsTypes.Metric_Incr_AllocationsRecomputed, 1, ls.nodeLabels())
	ls.timing(metricsTypes.Metric_Timing_RecomputeDuration, start, ls.nodeLabels())
	ls.publish(eventBusTypes.Event_AllocationsRecomputed, &eventBusTypes.AllocationsRecomputedData{
		NodeId:     ls.NodeId(),
		EpochId:    epochId,
		TotalUnits: totalUnits.String(),
		UserCount:  len(rows),
		Unresolved: unresolved,
	})
	return rows, nil
}
