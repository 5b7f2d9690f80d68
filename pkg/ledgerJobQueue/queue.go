package ledgerJobQueue

import (
	"context"

	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/pkg/ledger"
	"go.uber.org/zap"
)

// NewLedgerJobQueue creates a single consumer queue so ledger jobs of this process never run concurrently.
func NewLedgerJobQueue(runner JobRunner, ms *metrics.MetricsSink, logger *zap.Logger) *LedgerJobQueue {
	return &LedgerJobQueue{
		logger:      logger,
		runner:      runner,
		metricsSink: ms,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *LedgerJobMessage, 100),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a new message to the queue and returns once it is buffered
func (ljq *LedgerJobQueue) Enqueue(payload *LedgerJobMessage) {
	ljq.logger.Sugar().Infow("Enqueueing ledger job",
		zap.Uint64("epochId", payload.Data.EpochId),
		zap.String("operation", string(payload.Data.Operation)),
	)
	ljq.queue <- payload
}

// EnqueueAndWait adds a new message to the queue and waits for a response or returns if the context is done
func (ljq *LedgerJobQueue) EnqueueAndWait(ctx context.Context, data ledger.JobRequest) (*ledger.JobResult, error) {
	responseChan := make(chan *LedgerJobResponse, 1)

	payload := &LedgerJobMessage{
		Data:         data,
		ResponseChan: responseChan,
	}
	select {
	case ljq.queue <- payload:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ljq.logger.Sugar().Debugw("Waiting for ledger job response",
		zap.Uint64("epochId", data.EpochId),
		zap.String("operation", string(data.Operation)),
	)

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		ljq.logger.Sugar().Infow("Received context.Done()")
		return nil, ctx.Err()
	}
}

func (ljq *LedgerJobQueue) Close() {
	ljq.logger.Sugar().Infow("Closing ledger job queue")
	close(ljq.done)
}
