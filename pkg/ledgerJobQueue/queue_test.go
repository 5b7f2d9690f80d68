package ledgerJobQueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/pkg/ledger"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/stretchr/testify/assert"
)

type fakeRunner struct {
	mu        sync.Mutex
	requests  []ledger.JobRequest
	completed map[string]bool
	failOn    ledger.Operation
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{completed: map[string]bool{}}
}

func (f *fakeRunner) RunJob(ctx context.Context, req *ledger.JobRequest) (*ledger.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)

	if req.Operation == f.failOn {
		return nil, errors.New("job failed")
	}
	key := ledger.IdempotencyKey(req.EpochId, req.Operation)
	result := &ledger.JobResult{IdempotencyKey: key, Skipped: f.completed[key]}
	f.completed[key] = true
	return result, nil
}

func (f *fakeRunner) operations() []ledger.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]ledger.Operation, 0, len(f.requests))
	for _, r := range f.requests {
		ops = append(ops, r.Operation)
	}
	return ops
}

type fakeLister struct {
	epochs []*storage.Epoch
}

func (f *fakeLister) ListOpenEpochs(ctx context.Context) ([]*storage.Epoch, error) {
	return f.epochs, nil
}

func startQueue(t *testing.T, runner JobRunner) *LedgerJobQueue {
	l, _ := logger.NewLogger(&logger.LoggerConfig{})
	q := NewLedgerJobQueue(runner, nil, l)

	ctx, cancel := context.WithCancel(context.Background())
	go q.Process(ctx)
	t.Cleanup(cancel)
	return q
}

func Test_LedgerJobQueue(t *testing.T) {
	t.Run("Should run a job and return its result", func(t *testing.T) {
		runner := newFakeRunner()
		q := startQueue(t, runner)

		result, err := q.EnqueueAndWait(context.Background(), ledger.JobRequest{EpochId: 3, Operation: ledger.Operation_Seed})
		assert.Nil(t, err)
		assert.Equal(t, "3:seed", result.IdempotencyKey)
		assert.False(t, result.Skipped)

		result, err = q.EnqueueAndWait(context.Background(), ledger.JobRequest{EpochId: 3, Operation: ledger.Operation_Seed})
		assert.Nil(t, err)
		assert.True(t, result.Skipped)
	})
	t.Run("Should return job errors to the caller", func(t *testing.T) {
		runner := newFakeRunner()
		runner.failOn = ledger.Operation_Close
		q := startQueue(t, runner)

		_, err := q.EnqueueAndWait(context.Background(), ledger.JobRequest{EpochId: 1, Operation: ledger.Operation_Close})
		assert.NotNil(t, err)
	})
	t.Run("Should stop waiting when the context is done", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{})
		// never processed
		q := NewLedgerJobQueue(newFakeRunner(), nil, l)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := q.EnqueueAndWait(ctx, ledger.JobRequest{EpochId: 1, Operation: ledger.Operation_Seed})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("Should stop processing once closed", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{})
		q := NewLedgerJobQueue(newFakeRunner(), nil, l)

		done := make(chan struct{})
		go func() {
			q.Process(context.Background())
			close(done)
		}()
		q.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("queue did not stop")
		}
	})
}

func Test_Scheduler(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	l, _ := logger.NewLogger(&logger.LoggerConfig{})

	t.Run("Should seed then recompute epochs whose period ended", func(t *testing.T) {
		runner := newFakeRunner()
		q := startQueue(t, runner)
		lister := &fakeLister{epochs: []*storage.Epoch{
			{Id: 1, PeriodEnd: now.Add(-time.Hour)},
			{Id: 2, PeriodEnd: now.Add(time.Hour)},
		}}
		s := NewScheduler(q, lister, time.Minute, l)
		s.now = func() time.Time { return now }

		assert.Nil(t, s.Tick(context.Background()))
		assert.Equal(t, []ledger.Operation{ledger.Operation_Seed, ledger.Operation_Recompute}, runner.operations())
		for _, r := range runner.requests {
			assert.Equal(t, uint64(1), r.EpochId)
		}
	})
	t.Run("Should not recompute when seeding failed", func(t *testing.T) {
		runner := newFakeRunner()
		runner.failOn = ledger.Operation_Seed
		q := startQueue(t, runner)
		lister := &fakeLister{epochs: []*storage.Epoch{{Id: 1, PeriodEnd: now.Add(-time.Hour)}}}
		s := NewScheduler(q, lister, time.Minute, l)
		s.now = func() time.Time { return now }

		assert.Nil(t, s.Tick(context.Background()))
		assert.Equal(t, []ledger.Operation{ledger.Operation_Seed}, runner.operations())
	})
}
