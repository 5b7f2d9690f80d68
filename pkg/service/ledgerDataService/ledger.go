package ledgerDataService

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/service/baseDataService"
	"github.com/epochledger/epochledger/pkg/service/types"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/utils"
	"go.uber.org/zap"
)

type LedgerDataService struct {
	baseDataService.BaseDataService
	logger       *zap.Logger
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink
}

func NewLedgerDataService(
	store storage.LedgerStore,
	ms *metrics.MetricsSink,
	logger *zap.Logger,
	globalConfig *config.Config,
) *LedgerDataService {
	return &LedgerDataService{
		BaseDataService: baseDataService.BaseDataService{
			Store:  store,
			NodeId: globalConfig.LedgerConfig.NodeId,
		},
		logger:       logger,
		globalConfig: globalConfig,
		metricsSink:  ms,
	}
}

// ListClosedEpochs pages through the node's closed epochs, newest first.
func (lds *LedgerDataService) ListClosedEpochs(ctx context.Context, pagination *types.Pagination) (*types.ListEpochsResponse, error) {
	if pagination == nil {
		pagination = types.NewDefaultPagination()
	}
	epochs, err := lds.Store.ListEpochs(ctx, lds.NodeId, storage.EpochStatus_Closed, pagination.Limit, pagination.Offset)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.EpochSummary, 0, len(epochs))
	for _, e := range epochs {
		poolTotal := ""
		if e.PoolTotalCredits != nil {
			poolTotal = utils.FormatInt(*e.PoolTotalCredits)
		}
		summaries = append(summaries, &types.EpochSummary{
			Id:               e.Id,
			Status:           string(e.Status),
			PoolTotalCredits: poolTotal,
			PeriodStart:      e.PeriodStart.UTC().Format(time.RFC3339),
			PeriodEnd:        e.PeriodEnd.UTC().Format(time.RFC3339),
		})
	}
	return &types.ListEpochsResponse{Epochs: summaries}, nil
}

func (lds *LedgerDataService) GetEpochAllocations(ctx context.Context, epochId uint64) (*types.EpochAllocationsResponse, error) {
	epoch, err := lds.GetClosedEpoch(ctx, epochId)
	if err != nil {
		return nil, err
	}
	allocations, err := lds.Store.ListAllocations(ctx, lds.NodeId, epoch.Id)
	if err != nil {
		return nil, err
	}

	entries := make([]*types.AllocationEntry, 0, len(allocations))
	for _, a := range allocations {
		entries = append(entries, &types.AllocationEntry{
			Id:            a.Id,
			UserId:        a.UserId,
			ProposedUnits: utils.FormatInt(a.ProposedUnits),
		})
	}
	return &types.EpochAllocationsResponse{
		EpochId:     epoch.Id,
		Allocations: entries,
	}, nil
}

// GetEpochStatement returns the published statement of a closed epoch. A closed epoch
// without a statement is returned with a null statement and raised as an integrity alarm.
func (lds *LedgerDataService) GetEpochStatement(ctx context.Context, epochId uint64) (*types.EpochStatementResponse, error) {
	epoch, err := lds.GetClosedEpoch(ctx, epochId)
	if err != nil {
		return nil, err
	}
	statement, err := lds.Store.GetPayoutStatement(ctx, lds.NodeId, epoch.Id)
	if err != nil {
		return nil, err
	}
	if statement == nil {
		lds.logger.Sugar().Errorw("Closed epoch has no payout statement",
			zap.Uint64("epochId", epoch.Id),
			zap.String("nodeId", lds.NodeId),
		)
		if lds.metricsSink != nil {
			_ = lds.metricsSink.Incr(metricsTypes.Metric_Incr_IntegrityAlarm, []metricsTypes.MetricsLabel{
				{Name: "node_id", Value: lds.NodeId},
				{Name: "kind", Value: "missing_statement"},
			}, 1)
		}
		return &types.EpochStatementResponse{EpochId: epoch.Id}, nil
	}

	payouts := make([]*types.StatementPayout, 0, len(statement.Payouts))
	for _, p := range statement.Payouts {
		payouts = append(payouts, &types.StatementPayout{
			UserId:        p.UserId,
			TotalUnits:    p.TotalUnits,
			Share:         p.Share,
			AmountCredits: p.AmountCredits,
		})
	}
	return &types.EpochStatementResponse{
		EpochId: epoch.Id,
		Statement: &types.Statement{
			AllocationSetHash: statement.AllocationSetHash,
			PoolTotalCredits:  utils.FormatInt(statement.PoolTotalCredits),
			Payouts:           payouts,
		},
	}, nil
}
