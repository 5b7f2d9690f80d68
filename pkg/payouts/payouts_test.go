package payouts

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func allocation(userId string, units int64) *storage.Allocation {
	return &storage.Allocation{UserId: userId, ProposedUnits: units}
}

func sumCredits(payouts []*Payout) int64 {
	var sum int64
	for _, p := range payouts {
		sum += p.AmountCredits
	}
	return sum
}

func Test_Apportion(t *testing.T) {
	t.Run("Should split the pool proportionally", func(t *testing.T) {
		payouts, err := Apportion([]*storage.Allocation{
			allocation("user-2", 2000),
			allocation("user-1", 8000),
		}, 10000)
		assert.Nil(t, err)
		assert.Len(t, payouts, 2)

		assert.Equal(t, "user-1", payouts[0].UserId)
		assert.Equal(t, int64(8000), payouts[0].AmountCredits)
		assert.Equal(t, "user-2", payouts[1].UserId)
		assert.Equal(t, int64(2000), payouts[1].AmountCredits)
	})
	t.Run("Should award the remainder to the lowest user id on a tie", func(t *testing.T) {
		payouts, err := Apportion([]*storage.Allocation{
			allocation("user-c", 1),
			allocation("user-a", 1),
			allocation("user-b", 1),
		}, 10)
		assert.Nil(t, err)
		assert.Equal(t, int64(10), sumCredits(payouts))

		assert.Equal(t, "user-a", payouts[0].UserId)
		assert.Equal(t, int64(4), payouts[0].AmountCredits)
		assert.Equal(t, int64(3), payouts[1].AmountCredits)
		assert.Equal(t, int64(3), payouts[2].AmountCredits)
	})
	t.Run("Should award the remainder to the largest fractional remainder first", func(t *testing.T) {
		// 7 credits over units {1, 2}: floors {2, 4}, remainders {1/3, 2/3}
		payouts, err := Apportion([]*storage.Allocation{
			allocation("user-a", 1),
			allocation("user-b", 2),
		}, 7)
		assert.Nil(t, err)
		assert.Equal(t, int64(2), payouts[0].AmountCredits)
		assert.Equal(t, int64(5), payouts[1].AmountCredits)
	})
	t.Run("Should yield zero payouts for an empty pool", func(t *testing.T) {
		payouts, err := Apportion([]*storage.Allocation{
			allocation("user-a", 5),
			allocation("user-b", 0),
		}, 0)
		assert.Nil(t, err)
		assert.Len(t, payouts, 2)
		assert.Equal(t, int64(0), sumCredits(payouts))
	})
	t.Run("Should conflict when there are credits but no units", func(t *testing.T) {
		_, err := Apportion([]*storage.Allocation{allocation("user-a", 0)}, 100)
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_Conflict))
		assert.ErrorIs(t, err, ledgerErrors.ErrNothingToDistribute)

		_, err = Apportion(nil, 100)
		assert.ErrorIs(t, err, ledgerErrors.ErrNothingToDistribute)
	})
	t.Run("Should reject negative input", func(t *testing.T) {
		_, err := Apportion([]*storage.Allocation{allocation("user-a", 1)}, -1)
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_Validation))

		_, err = Apportion([]*storage.Allocation{allocation("user-a", -1)}, 1)
		assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_Validation))
	})
	t.Run("Should reject duplicate users", func(t *testing.T) {
		_, err := Apportion([]*storage.Allocation{
			allocation("user-a", 1),
			allocation("user-a", 2),
		}, 10)
		assert.NotNil(t, err)
	})
	t.Run("Should not overflow with large units and pools", func(t *testing.T) {
		payouts, err := Apportion([]*storage.Allocation{
			allocation("user-a", 1<<62),
			allocation("user-b", 1<<62),
			allocation("user-c", 1),
		}, 1<<62)
		assert.Nil(t, err)
		assert.Equal(t, int64(1<<62), sumCredits(payouts))
	})
	t.Run("Should always conserve the pool total", func(t *testing.T) {
		r := rand.New(rand.NewSource(42))
		for run := 0; run < 200; run++ {
			count := r.Intn(25) + 1
			allocs := make([]*storage.Allocation, 0, count)
			for i := 0; i < count; i++ {
				allocs = append(allocs, allocation(fmt.Sprintf("user-%03d", i), r.Int63n(100000)+1))
			}
			pool := r.Int63n(1_000_000)

			payouts, err := Apportion(allocs, pool)
			assert.Nil(t, err)
			assert.Equal(t, pool, sumCredits(payouts))
			for _, p := range payouts {
				assert.GreaterOrEqual(t, p.AmountCredits, int64(0))
			}
		}
	})
}

func Test_AllocationSetHash(t *testing.T) {
	t.Run("Should be independent of input order", func(t *testing.T) {
		h1, err := AllocationSetHash(1, []*storage.Allocation{allocation("user-1", 8000), allocation("user-2", 2000)})
		assert.Nil(t, err)
		h2, err := AllocationSetHash(1, []*storage.Allocation{allocation("user-2", 2000), allocation("user-1", 8000)})
		assert.Nil(t, err)

		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 66)
	})
	t.Run("Should change when any unit count changes", func(t *testing.T) {
		h1, _ := AllocationSetHash(1, []*storage.Allocation{allocation("user-1", 8000)})
		h2, _ := AllocationSetHash(1, []*storage.Allocation{allocation("user-1", 8001)})
		assert.NotEqual(t, h1, h2)
	})
	t.Run("Should not let the separator be forged by user ids", func(t *testing.T) {
		h1, _ := AllocationSetHash(1, []*storage.Allocation{allocation("user-1", 12)})
		h2, _ := AllocationSetHash(1, []*storage.Allocation{allocation("user-11", 2)})
		assert.NotEqual(t, h1, h2)
	})
	t.Run("Should bind the hash to the epoch", func(t *testing.T) {
		h1, _ := AllocationSetHash(1, nil)
		h2, _ := AllocationSetHash(2, nil)
		assert.NotEqual(t, h1, h2)
	})
	t.Run("Should reject duplicate users", func(t *testing.T) {
		_, err := AllocationSetHash(1, []*storage.Allocation{allocation("user-1", 1), allocation("user-1", 1)})
		assert.NotNil(t, err)
	})
}

func Test_BuildStatement(t *testing.T) {
	t.Run("Should build the statement for a closed epoch", func(t *testing.T) {
		epoch := &storage.Epoch{Id: 7, NodeId: "node-a"}
		allocs := []*storage.Allocation{allocation("user-1", 8000), allocation("user-2", 2000)}

		statement, err := BuildStatement(epoch, 10000, allocs)
		assert.Nil(t, err)
		assert.Equal(t, uint64(7), statement.EpochId)
		assert.Equal(t, "node-a", statement.NodeId)
		assert.Equal(t, int64(10000), statement.PoolTotalCredits)

		expectedHash, _ := AllocationSetHash(7, allocs)
		assert.Equal(t, expectedHash, statement.AllocationSetHash)

		assert.Equal(t, []storage.PayoutLine{
			{UserId: "user-1", TotalUnits: "8000", Share: "0.800000", AmountCredits: "8000"},
			{UserId: "user-2", TotalUnits: "2000", Share: "0.200000", AmountCredits: "2000"},
		}, []storage.PayoutLine(statement.Payouts))
	})
	t.Run("Should build an empty statement for an epoch without allocations or pool", func(t *testing.T) {
		statement, err := BuildStatement(&storage.Epoch{Id: 1, NodeId: "node-a"}, 0, nil)
		assert.Nil(t, err)
		assert.Len(t, statement.Payouts, 0)
		assert.NotEmpty(t, statement.AllocationSetHash)
	})
	t.Run("Should compute shares when the unit total exceeds 64 bits", func(t *testing.T) {
		allocs := []*storage.Allocation{allocation("a", 1<<62), allocation("b", 1<<62)}

		statement, err := BuildStatement(&storage.Epoch{Id: 3, NodeId: "node-a"}, 10, allocs)
		assert.Nil(t, err)
		assert.Equal(t, []storage.PayoutLine{
			{UserId: "a", TotalUnits: "4611686018427387904", Share: "0.500000", AmountCredits: "5"},
			{UserId: "b", TotalUnits: "4611686018427387904", Share: "0.500000", AmountCredits: "5"},
		}, []storage.PayoutLine(statement.Payouts))
	})
}
