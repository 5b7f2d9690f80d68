package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
)

type Operation string

var (
	Operation_Seed      Operation = "seed"
	Operation_Recompute Operation = "recompute"
	Operation_Close     Operation = "close"
)

// IdempotencyKey identifies one operation on one epoch across retries.
func IdempotencyKey(epochId uint64, op Operation) string {
	return fmt.Sprintf("%d:%s", epochId, op)
}

type JobRequest struct {
	EpochId   uint64
	Operation Operation
	// PoolTotalCredits is only used by Operation_Close
	PoolTotalCredits int64
}

type JobResult struct {
	IdempotencyKey string
	// Skipped is true when the key had already completed and nothing ran
	Skipped bool
}

// RunJob runs a scheduled or externally initiated operation at most once per
// idempotency key. The operation and the record of its completion commit together,
// so a retry after success is a no-op and a retry after failure runs again.
func (ls *LedgerService) RunJob(ctx context.Context, req *JobRequest) (*JobResult, error) {
	key := IdempotencyKey(req.EpochId, req.Operation)
	result := &JobResult{IdempotencyKey: key}

	err := ls.store.Transaction(ctx, func(tx storage.LedgerStore) error {
		run, err := tx.GetJobRun(ctx, key)
		if err != nil {
			return err
		}
		if run != nil && run.Status == storage.JobRunStatus_Completed {
			result.Skipped = true
			return nil
		}

		txLedger := ls.withStore(tx)
		switch req.Operation {
		case Operation_Seed:
			_, err = txLedger.SeedCurations(ctx, req.EpochId)
		case Operation_Recompute:
			_, err = txLedger.RecomputeAllocations(ctx, req.EpochId)
		case Operation_Close:
			_, err = txLedger.CloseEpoch(ctx, req.EpochId, req.PoolTotalCredits)
			if err != nil && errors.Is(err, ledgerErrors.ErrEpochNotOpen) {
				applied, checkErr := txLedger.closeAlreadyApplied(ctx, req.EpochId, req.PoolTotalCredits)
				if checkErr != nil {
					return checkErr
				}
				if applied {
					ls.logger.Sugar().Infow("Epoch already closed with the same pool total",
						zap.Uint64("epochId", req.EpochId),
						zap.String("idempotencyKey", key),
					)
					err = nil
				}
			}
		default:
			return ledgerErrors.Validation(nil, "unknown operation '%s'", req.Operation)
		}
		if err != nil {
			return err
		}

		return tx.RecordJobRun(ctx, &storage.LedgerJobRun{
			IdempotencyKey: key,
			EpochId:        req.EpochId,
			Operation:      string(req.Operation),
			Status:         storage.JobRunStatus_Completed,
			CompletedAt:    ls.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		ls.logger.Sugar().Infow("Job already completed, skipping", zap.String("idempotencyKey", key))
	}
	return result, nil
}
