package ledger

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/weights"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type CreateEpochRequest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Weights     *weights.WeightConfig
}

// CreateEpoch opens a new epoch for the configured node and scope. The weight
// table is frozen into the epoch and never changes afterwards.
func (ls *LedgerService) CreateEpoch(ctx context.Context, req *CreateEpochRequest) (epoch *storage.Epoch, err error) {
	ctx, span := ls.startSpan(ctx, "ledger.CreateEpoch", 0)
	defer func() { endSpan(span, err) }()

	if req.Weights == nil {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidWeightConfig, "weight config is required")
	}
	if ls.ScopeId() == "" {
		return nil, ledgerErrors.Configuration(nil, "scope id is not configured")
	}
	start := req.PeriodStart.UTC()
	end := req.PeriodEnd.UTC()
	if !start.Before(end) {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidPeriod, "period [%s, %s)", start, end)
	}

	epoch, err = ls.store.CreateEpoch(ctx, &storage.Epoch{
		NodeId:       ls.NodeId(),
		ScopeId:      ls.ScopeId(),
		PeriodStart:  start,
		PeriodEnd:    end,
		WeightConfig: datatypes.NewJSONType(req.Weights.ToMap()),
	})
	if err != nil {
		ls.logger.Sugar().Errorw("Failed to create epoch", zap.Error(err))
		return nil, err
	}
	ls.logger.Sugar().Infow("Created epoch",
		zap.Uint64("epochId", epoch.Id),
		zap.String("nodeId", epoch.NodeId),
		zap.String("scopeId", epoch.ScopeId),
		zap.Time("periodStart", epoch.PeriodStart),
		zap.Time("periodEnd", epoch.PeriodEnd),
		zap.String("weights", req.Weights.String()),
	)
	ls.reportOpenEpochs(ctx)
	return epoch, nil
}

func (ls *LedgerService) GetEpoch(ctx context.Context, epochId uint64) (*storage.Epoch, error) {
	epoch, err := ls.store.GetEpoch(ctx, ls.NodeId(), epochId)
	if err != nil {
		return nil, err
	}
	if epoch == nil {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d", epochId)
	}
	return epoch, nil
}

// ListOpenEpochs returns every open epoch of the node, newest first.
func (ls *LedgerService) ListOpenEpochs(ctx context.Context) ([]*storage.Epoch, error) {
	// a negative limit removes the limit
	return ls.store.ListEpochs(ctx, ls.NodeId(), storage.EpochStatus_Open, -1, 0)
}

func (ls *LedgerService) reportOpenEpochs(ctx context.Context) {
	open, err := ls.ListOpenEpochs(ctx)
	if err != nil {
		ls.logger.Sugar().Warnw("Failed to count open epochs", zap.Error(err))
		return
	}
	ls.gauge(metricsTypes.Metric_Gauge_OpenEpochs, float64(len(open)), ls.nodeLabels())
}
