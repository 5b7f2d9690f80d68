package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type PoolComponentRequest struct {
	ComponentId      string
	AlgorithmVersion string
	Inputs           map[string]any
	AmountCredits    int64
}

// InsertPoolComponent adds one funding component to an open epoch. Components are
// additive; a component id can be used once per epoch.
func (ls *LedgerService) InsertPoolComponent(ctx context.Context, epochId uint64, req *PoolComponentRequest) (component *storage.PoolComponent, err error) {
	ctx, span := ls.startSpan(ctx, "ledger.InsertPoolComponent", epochId)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(req.ComponentId) == "" {
		return nil, ledgerErrors.Validation(nil, "component id is required")
	}
	if req.AmountCredits < 0 {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrNegativeAmount, "component '%s' amount %d", req.ComponentId, req.AmountCredits)
	}
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	inputsJson, err := json.Marshal(inputs)
	if err != nil {
		return nil, ledgerErrors.Validation(err, "component '%s' inputs are not serializable", req.ComponentId)
	}

	err = ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		epoch, err := ls.getOpenEpoch(ctx, tx, epochId)
		if err != nil {
			return err
		}
		component, err = tx.InsertPoolComponent(ctx, &storage.PoolComponent{
			EpochId:          epoch.Id,
			ComponentId:      req.ComponentId,
			NodeId:           epoch.NodeId,
			AlgorithmVersion: req.AlgorithmVersion,
			InputsJson:       datatypes.JSON(inputsJson),
			AmountCredits:    req.AmountCredits,
		})
		return err
	})
	if err != nil {
		ls.logger.Sugar().Errorw("Failed to insert pool component",
			zap.Uint64("epochId", epochId),
			zap.String("componentId", req.ComponentId),
			zap.Error(err),
		)
		return nil, err
	}

	ls.logger.Sugar().Infow("Added pool component",
		zap.Uint64("epochId", epochId),
		zap.String("componentId", req.ComponentId),
		zap.Int64("amountCredits", req.AmountCredits),
	)
	ls.incr(metricsTypes.Metric_Incr_PoolComponentAdded, 1, ls.nodeLabels(metricsTypes.MetricsLabel{Name: "component_id", Value: req.ComponentId}))
	return component, nil
}

// PoolTotal is the sum of every component added to the epoch so far.
func (ls *LedgerService) PoolTotal(ctx context.Context, epochId uint64) (int64, error) {
	if _, err := ls.GetEpoch(ctx, epochId); err != nil {
		return 0, err
	}
	return ls.store.SumPoolComponents(ctx, ls.NodeId(), epochId)
}

// HasComponent reports whether the epoch has a component with the given id. Funding
// policies use it; the ledger does not require any particular component.
func (ls *LedgerService) HasComponent(ctx context.Context, epochId uint64, componentId string) (bool, error) {
	components, err := ls.store.ListPoolComponents(ctx, ls.NodeId(), epochId)
	if err != nil {
		return false, err
	}
	for _, c := range components {
		if c.ComponentId == componentId {
			return true, nil
		}
	}
	return false, nil
}
