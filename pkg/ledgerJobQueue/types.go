package ledgerJobQueue

import (
	"context"

	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/pkg/ledger"
	"go.uber.org/zap"
)

// JobRunner is the part of the ledger the queue drives.
type JobRunner interface {
	RunJob(ctx context.Context, req *ledger.JobRequest) (*ledger.JobResult, error)
}

type LedgerJobMessage struct {
	Data         ledger.JobRequest
	ResponseChan chan *LedgerJobResponse
}

type LedgerJobResponse struct {
	Data  *ledger.JobResult
	Error error
}

type LedgerJobQueue struct {
	logger      *zap.Logger
	runner      JobRunner
	metricsSink *metrics.MetricsSink
	queue       chan *LedgerJobMessage
	done        chan struct{}
}
