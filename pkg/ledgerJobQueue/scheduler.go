package ledgerJobQueue

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/pkg/ledger"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
)

type OpenEpochLister interface {
	ListOpenEpochs(ctx context.Context) ([]*storage.Epoch, error)
}

// Scheduler finalizes curations and allocations of open epochs whose period has ended.
// Each step runs through the queue with an idempotency key, so it happens once per epoch
// no matter how many ticks or processes observe it.
type Scheduler struct {
	queue    *LedgerJobQueue
	epochs   OpenEpochLister
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduler(queue *LedgerJobQueue, epochs OpenEpochLister, interval time.Duration, l *zap.Logger) *Scheduler {
	return &Scheduler{
		queue:    queue,
		epochs:   epochs,
		interval: interval,
		logger:   l,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Start ticks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Sugar().Infow("Starting ledger scheduler", zap.Duration("interval", s.interval))
	for {
		if err := s.Tick(ctx); err != nil {
			s.logger.Sugar().Errorw("Ledger scheduler tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Sugar().Infow("Stopping ledger scheduler")
			return
		case <-ticker.C:
		}
	}
}

// Tick seeds and then recomputes every open epoch whose period has ended.
func (s *Scheduler) Tick(ctx context.Context) error {
	epochs, err := s.epochs.ListOpenEpochs(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, epoch := range epochs {
		if now.Before(epoch.PeriodEnd) {
			continue
		}
		for _, op := range []ledger.Operation{ledger.Operation_Seed, ledger.Operation_Recompute} {
			_, err := s.queue.EnqueueAndWait(ctx, ledger.JobRequest{EpochId: epoch.Id, Operation: op})
			if err != nil {
				s.logger.Sugar().Errorw("Scheduled ledger job failed",
					zap.Uint64("epochId", epoch.Id),
					zap.String("operation", string(op)),
					zap.Error(err),
				)
				break
			}
		}
	}
	return nil
}
