package ledger

import (
	"context"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
)

// SeedCurations proposes every event inside the epoch window for inclusion,
// attributed to the event's platform user. Rows that already exist keep their
// current decision, so seeding can be repeated at any time while the epoch is open.
func (ls *LedgerService) SeedCurations(ctx context.Context, epochId uint64) (inserted int64, err error) {
	ctx, span := ls.startSpan(ctx, "ledger.SeedCurations", epochId)
	defer func() { endSpan(span, err) }()

	err = ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		epoch, err := ls.getOpenEpoch(ctx, tx, epochId)
		if err != nil {
			return err
		}
		events, err := tx.ListEventsInWindow(ctx, epoch.NodeId, epoch.ScopeId, epoch.PeriodStart, epoch.PeriodEnd)
		if err != nil {
			return err
		}

		rows := make([]*storage.Curation, 0, len(events))
		for _, e := range events {
			userId := e.PlatformUserId
			rows = append(rows, &storage.Curation{
				EpochId:  epoch.Id,
				EventId:  e.Id,
				NodeId:   epoch.NodeId,
				Included: true,
				UserId:   &userId,
			})
		}
		inserted, err = tx.InsertCurationDoNothing(ctx, rows)
		if err != nil {
			return err
		}
		ls.logger.Sugar().Infow("Seeded curations",
			zap.Uint64("epochId", epochId),
			zap.Int("eventsInWindow", len(events)),
			zap.Int64("inserted", inserted),
		)
		return nil
	})
	if err != nil {
		ls.logger.Sugar().Errorw("Failed to seed curations", zap.Uint64("epochId", epochId), zap.Error(err))
		return 0, err
	}

	ls.incr(metricsTypes.Metric_Incr_CurationsSeeded, float64(inserted), ls.nodeLabels())
	ls.publish(eventBusTypes.Event_CurationsSeeded, &eventBusTypes.CurationsSeededData{
		NodeId:   ls.NodeId(),
		EpochId:  epochId,
		Inserted: inserted,
	})
	return inserted, nil
}

// SetCurationIncluded records a manual include or exclude decision for one event.
func (ls *LedgerService) SetCurationIncluded(ctx context.Context, epochId uint64, eventId string, included bool) (err error) {
	ctx, span := ls.startSpan(ctx, "ledger.SetCurationIncluded", epochId)
	defer func() { endSpan(span, err) }()

	err = ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		if _, err := ls.getOpenEpoch(ctx, tx, epochId); err != nil {
			return err
		}
		return tx.SetCurationIncluded(ctx, ls.NodeId(), epochId, eventId, included)
	})
	if err != nil {
		return err
	}
	ls.logger.Sugar().Infow("Updated curation",
		zap.Uint64("epochId", epochId),
		zap.String("eventId", eventId),
		zap.Bool("included", included),
	)
	return nil
}
