package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/internal/tests"
	"github.com/epochledger/epochledger/pkg/eventBus"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/payouts"
	pg "github.com/epochledger/epochledger/pkg/postgres"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
)

func setupPostgres(t *testing.T) *testLedger {
	if !tests.PostgresTestsEnabled() {
		t.Skip("Skipping postgres tests, set TEST_POSTGRES=true to enable")
	}
	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	td, err := pg.NewTestDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(td.Teardown)

	store := postgres.NewPostgresLedgerStore(td.Gorm, l, cfg)
	sink, _ := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, nil)
	eb := eventBus.NewEventBus(l)
	return &testLedger{
		ledger:   NewLedgerService(store, sink, eb, l, cfg),
		store:    store,
		eventBus: eb,
		cfg:      cfg,
	}
}

// holdClose closes the epoch inside a transaction and keeps that transaction
// open until release is closed.
func holdClose(tl *testLedger, epochId uint64, poolTotal int64) (release chan struct{}, done chan error) {
	locked := make(chan struct{})
	release = make(chan struct{})
	done = make(chan error, 1)
	go func() {
		done <- tl.store.Transaction(context.Background(), func(tx storage.LedgerStore) error {
			if _, err := tx.CloseEpoch(context.Background(), tl.cfg.LedgerConfig.NodeId, epochId, poolTotal, time.Now().UTC()); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	return release, done
}

func Test_LedgerService_Postgres(t *testing.T) {
	ctx := context.Background()

	t.Run("Should block epoch writes behind a close in progress and then reject them", func(t *testing.T) {
		tl := setupPostgres(t)
		epoch := seedExample(t, tl)

		allocsBefore, err := tl.store.ListAllocations(ctx, tl.cfg.LedgerConfig.NodeId, epoch.Id)
		assert.Nil(t, err)
		hashBefore, err := payouts.AllocationSetHash(epoch.Id, allocsBefore)
		assert.Nil(t, err)

		err = tl.ledger.InsertActivityEvents(ctx, []*storage.ActivityEvent{
			newEvent("evt-late", "pr_merged", "user-4", periodStart.Add(3*time.Hour)),
		})
		assert.Nil(t, err)

		release, closeDone := holdClose(tl, epoch.Id, 10000)

		results := make(chan error, 3)
		go func() {
			_, err := tl.ledger.InsertPoolComponent(ctx, epoch.Id, &PoolComponentRequest{ComponentId: "late_bonus", AmountCredits: 500})
			results <- err
		}()
		go func() {
			_, err := tl.ledger.SeedCurations(ctx, epoch.Id)
			results <- err
		}()
		go func() {
			_, err := tl.ledger.RecomputeAllocations(ctx, epoch.Id)
			results <- err
		}()

		select {
		case err := <-results:
			t.Fatalf("Write finished while the close held the epoch: %v", err)
		case <-time.After(300 * time.Millisecond):
		}

		close(release)
		assert.Nil(t, <-closeDone)
		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, <-results, ledgerErrors.ErrEpochNotOpen)
		}

		total, err := tl.store.SumPoolComponents(ctx, tl.cfg.LedgerConfig.NodeId, epoch.Id)
		assert.Nil(t, err)
		assert.Equal(t, int64(10000), total)

		curation, err := tl.store.GetCuration(ctx, tl.cfg.LedgerConfig.NodeId, epoch.Id, "evt-late")
		assert.Nil(t, err)
		assert.Nil(t, curation)

		allocsAfter, err := tl.store.ListAllocations(ctx, tl.cfg.LedgerConfig.NodeId, epoch.Id)
		assert.Nil(t, err)
		hashAfter, err := payouts.AllocationSetHash(epoch.Id, allocsAfter)
		assert.Nil(t, err)
		assert.Equal(t, hashBefore, hashAfter)
	})
	t.Run("Should let exactly one of two concurrent closes succeed", func(t *testing.T) {
		tl := setupPostgres(t)
		epoch := seedExample(t, tl)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = tl.ledger.CloseEpoch(ctx, epoch.Id, 10000)
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_Conflict), fmt.Sprintf("unexpected error: %v", err))
			}
		}
		assert.Equal(t, 1, successes)

		statement, err := tl.store.GetPayoutStatement(ctx, tl.cfg.LedgerConfig.NodeId, epoch.Id)
		assert.Nil(t, err)
		assert.NotNil(t, statement)
	})
}
