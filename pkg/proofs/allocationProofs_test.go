package proofs

import (
	"context"
	"testing"
	"time"

	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/tests"
	testSqlite "github.com/epochledger/epochledger/internal/tests/sqlite"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/payouts"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func setupClosedEpoch(t *testing.T, allocations map[string]int64) (*postgres.PostgresLedgerStore, *storage.Epoch) {
	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	store := postgres.NewPostgresLedgerStore(testSqlite.GetInMemorySqliteDatabaseConnection(t), l, cfg)
	return store, closeEpochWith(t, store, allocations)
}

func closeEpochWith(t *testing.T, store *postgres.PostgresLedgerStore, allocations map[string]int64) *storage.Epoch {
	ctx := context.Background()
	epoch, err := store.CreateEpoch(ctx, &storage.Epoch{
		NodeId:       tests.TestNodeId,
		ScopeId:      tests.TestScopeId,
		PeriodStart:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		WeightConfig: datatypes.NewJSONType(map[string]int64{"pr_merged": 1}),
	})
	assert.Nil(t, err)

	rows := make([]*storage.Allocation, 0, len(allocations))
	for userId, units := range allocations {
		rows = append(rows, &storage.Allocation{EpochId: epoch.Id, NodeId: tests.TestNodeId, UserId: userId, ProposedUnits: units})
	}
	if len(rows) > 0 {
		assert.Nil(t, store.InsertAllocations(ctx, rows))
	}

	err = store.Transaction(ctx, func(tx storage.LedgerStore) error {
		closed, err := tx.CloseEpoch(ctx, tests.TestNodeId, epoch.Id, 0, time.Now().UTC())
		if err != nil {
			return err
		}
		listed, err := tx.ListAllocations(ctx, tests.TestNodeId, epoch.Id)
		if err != nil {
			return err
		}
		statement, err := payouts.BuildStatement(closed, 0, listed)
		if err != nil {
			return err
		}
		_, err = tx.InsertPayoutStatement(ctx, statement)
		return err
	})
	assert.Nil(t, err)
	return epoch
}

func Test_AllocationProofs(t *testing.T) {
	ctx := context.Background()
	l, _ := logger.NewLogger(&logger.LoggerConfig{})

	t.Run("Should generate a verifiable proof for every user", func(t *testing.T) {
		allocations := map[string]int64{"user-1": 8000, "user-2": 2000, "user-3": 5}
		store, epoch := setupClosedEpoch(t, allocations)
		aps := NewAllocationProofsStore(store, tests.TestNodeId, l)

		statement, err := store.GetPayoutStatement(ctx, tests.TestNodeId, epoch.Id)
		assert.Nil(t, err)

		for userId := range allocations {
			proof, err := aps.GenerateAllocationProof(ctx, epoch.Id, userId)
			assert.Nil(t, err)
			assert.Equal(t, statement.AllocationSetHash, proof.AllocationSetHash)

			valid, err := VerifyAllocationProof(proof)
			assert.Nil(t, err)
			assert.True(t, valid)
		}
	})
	t.Run("Should reject a proof with altered units", func(t *testing.T) {
		store, epoch := setupClosedEpoch(t, map[string]int64{"user-1": 8000, "user-2": 2000})
		aps := NewAllocationProofsStore(store, tests.TestNodeId, l)

		proof, err := aps.GenerateAllocationProof(ctx, epoch.Id, "user-1")
		assert.Nil(t, err)

		proof.ProposedUnits = "9000"
		valid, err := VerifyAllocationProof(proof)
		assert.Nil(t, err)
		assert.False(t, valid)
	})
	t.Run("Should not find users outside the allocation set", func(t *testing.T) {
		store, epoch := setupClosedEpoch(t, map[string]int64{"user-1": 1})
		aps := NewAllocationProofsStore(store, tests.TestNodeId, l)

		_, err := aps.GenerateAllocationProof(ctx, epoch.Id, "user-9")
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_NotFound))
	})
	t.Run("Should not find open or missing epochs", func(t *testing.T) {
		store, epoch := setupClosedEpoch(t, map[string]int64{"user-1": 1})
		aps := NewAllocationProofsStore(store, tests.TestNodeId, l)

		_, err := aps.GenerateAllocationProof(ctx, epoch.Id+100, "user-1")
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_NotFound))

		other := NewAllocationProofsStore(store, "node-other", l)
		_, err = other.GenerateAllocationProof(ctx, epoch.Id, "user-1")
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_NotFound))
	})
	t.Run("Should evict the least recently used epoch tree", func(t *testing.T) {
		store, first := setupClosedEpoch(t, map[string]int64{"user-1": 1})
		second := closeEpochWith(t, store, map[string]int64{"user-2": 2})
		third := closeEpochWith(t, store, map[string]int64{"user-3": 3})

		aps := NewAllocationProofsStore(store, tests.TestNodeId, l)
		aps.maxCachedEpochs = 2

		_, err := aps.GenerateAllocationProof(ctx, first.Id, "user-1")
		assert.Nil(t, err)
		_, err = aps.GenerateAllocationProof(ctx, second.Id, "user-2")
		assert.Nil(t, err)
		_, err = aps.GenerateAllocationProof(ctx, first.Id, "user-1")
		assert.Nil(t, err)
		_, err = aps.GenerateAllocationProof(ctx, third.Id, "user-3")
		assert.Nil(t, err)

		assert.Equal(t, 2, aps.proofData.Len())
		_, ok := aps.proofData.Get(second.Id)
		assert.False(t, ok)
		_, ok = aps.proofData.Get(first.Id)
		assert.True(t, ok)
		_, ok = aps.proofData.Get(third.Id)
		assert.True(t, ok)

		proof, err := aps.GenerateAllocationProof(ctx, second.Id, "user-2")
		assert.Nil(t, err)
		valid, err := VerifyAllocationProof(proof)
		assert.Nil(t, err)
		assert.True(t, valid)
	})
}
