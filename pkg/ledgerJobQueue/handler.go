package ledgerJobQueue

import (
	"context"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"go.uber.org/zap"
)

// Process consumes the queue until Close is called.
func (ljq *LedgerJobQueue) Process(ctx context.Context) {
	for {
		select {
		case <-ljq.done:
			ljq.logger.Sugar().Infow("Ledger job queue closed")
			return
		case <-ctx.Done():
			ljq.logger.Sugar().Infow("Ledger job queue context done")
			return
		case msg := <-ljq.queue:
			response := ljq.processMessage(ctx, msg)

			if msg.ResponseChan != nil {
				select {
				case msg.ResponseChan <- response:
				default:
					ljq.logger.Sugar().Infow("No receiver for response, dropping",
						zap.Uint64("epochId", msg.Data.EpochId),
						zap.String("operation", string(msg.Data.Operation)),
					)
				}
			}
		}
	}
}

func (ljq *LedgerJobQueue) processMessage(ctx context.Context, msg *LedgerJobMessage) *LedgerJobResponse {
	result, err := ljq.runner.RunJob(ctx, &msg.Data)

	status := "completed"
	switch {
	case err != nil:
		status = "failed"
		ljq.logger.Sugar().Errorw("Ledger job failed",
			zap.Uint64("epochId", msg.Data.EpochId),
			zap.String("operation", string(msg.Data.Operation)),
			zap.Error(err),
		)
	case result.Skipped:
		status = "skipped"
	default:
		ljq.logger.Sugar().Infow("Ledger job completed",
			zap.Uint64("epochId", msg.Data.EpochId),
			zap.String("operation", string(msg.Data.Operation)),
			zap.String("idempotencyKey", result.IdempotencyKey),
		)
	}

	if ljq.metricsSink != nil {
		_ = ljq.metricsSink.Incr(metricsTypes.Metric_Incr_JobProcessed, []metricsTypes.MetricsLabel{
			{Name: "operation", Value: string(msg.Data.Operation)},
			{Name: "status", Value: status},
		}, 1)
	}
	return &LedgerJobResponse{Data: result, Error: err}
}
