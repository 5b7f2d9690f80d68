package payouts

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/types/numbers"
	"github.com/epochledger/epochledger/pkg/utils"
	"github.com/pkg/errors"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// MerkleLeafPrefix_AllocationSet starts the leaf that binds a tree to its epoch.
	MerkleLeafPrefix_AllocationSet = []byte("epochledger/allocation-set/v1")
	// MerkleLeafPrefix_Allocation starts every per-user leaf.
	MerkleLeafPrefix_Allocation = []byte{0x01}
)

type Payout struct {
	UserId        string
	TotalUnits    int64
	AmountCredits int64
}

type remainderEntry struct {
	index     int
	userId    string
	remainder *big.Int
}

// Apportion splits poolTotalCredits across the allocations with the largest-remainder method.
//
// Every user first receives floor(units * pool / totalUnits). The credits left over are
// handed out one at a time to the users with the largest fractional remainder, ties going
// to the lower user id. The result is ordered by user id and always sums to poolTotalCredits.
func Apportion(allocations []*storage.Allocation, poolTotalCredits int64) ([]*Payout, error) {
	if poolTotalCredits < 0 {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrNegativeAmount, "pool total credits %d", poolTotalCredits)
	}
	sorted, err := sortAllocations(allocations)
	if err != nil {
		return nil, err
	}

	totalUnits := SumUnits(sorted)

	payouts := make([]*Payout, 0, len(sorted))
	for _, a := range sorted {
		payouts = append(payouts, &Payout{UserId: a.UserId, TotalUnits: a.ProposedUnits})
	}

	if poolTotalCredits == 0 {
		return payouts, nil
	}
	if totalUnits.Sign() == 0 {
		return nil, ledgerErrors.Conflict(ledgerErrors.ErrNothingToDistribute, "pool total credits %d", poolTotalCredits)
	}

	pool := big.NewInt(poolTotalCredits)
	distributed := new(big.Int)
	remainders := make([]*remainderEntry, 0, len(sorted))
	for i, a := range sorted {
		numerator := new(big.Int).Mul(big.NewInt(a.ProposedUnits), pool)
		floor, rem := new(big.Int).QuoRem(numerator, totalUnits, new(big.Int))

		payouts[i].AmountCredits = floor.Int64()
		distributed.Add(distributed, floor)
		remainders = append(remainders, &remainderEntry{index: i, userId: a.UserId, remainder: rem})
	}

	leftover := new(big.Int).Sub(pool, distributed).Int64()
	if leftover < 0 || leftover > int64(len(remainders)) {
		return nil, fmt.Errorf("apportionment left %d credits for %d users", leftover, len(remainders))
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		c := remainders[i].remainder.Cmp(remainders[j].remainder)
		if c != 0 {
			return c > 0
		}
		return remainders[i].userId < remainders[j].userId
	})
	for i := int64(0); i < leftover; i++ {
		payouts[remainders[i].index].AmountCredits++
	}
	return payouts, nil
}

// sortAllocations returns a copy ordered by user id, rejecting duplicates and negative units.
func sortAllocations(allocations []*storage.Allocation) ([]*storage.Allocation, error) {
	sorted := make([]*storage.Allocation, 0, len(allocations))
	for _, a := range allocations {
		if a == nil {
			continue
		}
		if a.ProposedUnits < 0 {
			return nil, ledgerErrors.Validation(ledgerErrors.ErrNegativeAmount, "user %s has negative units %d", a.UserId, a.ProposedUnits)
		}
		sorted = append(sorted, a)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UserId < sorted[j].UserId
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].UserId == sorted[i-1].UserId {
			return nil, fmt.Errorf("duplicate allocation for user %s", sorted[i].UserId)
		}
	}
	return sorted, nil
}

// EncodeAllocationLeaf is the canonical leaf for a single user: prefix, user id, a zero
// separator, then the decimal unit count.
func EncodeAllocationLeaf(userId string, proposedUnits int64) []byte {
	leaf := append([]byte{}, MerkleLeafPrefix_Allocation...)
	leaf = append(leaf, []byte(userId)...)
	leaf = append(leaf, 0x00)
	return strconv.AppendInt(leaf, proposedUnits, 10)
}

func encodeEpochLeaf(epochId uint64) []byte {
	leaf := append([]byte{}, MerkleLeafPrefix_AllocationSet...)
	return binary.BigEndian.AppendUint64(leaf, epochId)
}

// MerkleizeAllocations builds the allocation set tree for an epoch. The first leaf binds
// the tree to the epoch so an empty set still has a root.
func MerkleizeAllocations(epochId uint64, allocations []*storage.Allocation) (*merkletree.MerkleTree, error) {
	sorted, err := sortAllocations(allocations)
	if err != nil {
		return nil, err
	}

	om := orderedmap.New[string, int64]()
	for _, a := range sorted {
		if _, found := om.Get(a.UserId); found {
			return nil, fmt.Errorf("duplicate userId %s", a.UserId)
		}
		om.Set(a.UserId, a.ProposedUnits)

		prev := om.GetPair(a.UserId).Prev()
		if prev != nil && prev.Key > a.UserId {
			return nil, errors.New("userIds are not in order")
		}
	}

	leaves := [][]byte{encodeEpochLeaf(epochId)}
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		leaves = append(leaves, EncodeAllocationLeaf(pair.Key, pair.Value))
	}
	return merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
}

// AllocationSetHash returns the hex encoded root of the allocation set tree.
func AllocationSetHash(epochId uint64, allocations []*storage.Allocation) (string, error) {
	tree, err := MerkleizeAllocations(epochId, allocations)
	if err != nil {
		return "", errors.Wrapf(err, "failed to merkleize allocations for epoch %d", epochId)
	}
	return utils.ConvertBytesToString(tree.Root()), nil
}

// SumUnits totals the proposed units without overflowing.
func SumUnits(allocations []*storage.Allocation) *big.Int {
	total := new(big.Int)
	for _, a := range allocations {
		total.Add(total, big.NewInt(a.ProposedUnits))
	}
	return total
}

// BuildStatement apportions the pool and produces the statement row persisted on close.
func BuildStatement(epoch *storage.Epoch, poolTotalCredits int64, allocations []*storage.Allocation) (*storage.PayoutStatement, error) {
	payouts, err := Apportion(allocations, poolTotalCredits)
	if err != nil {
		return nil, err
	}
	hash, err := AllocationSetHash(epoch.Id, allocations)
	if err != nil {
		return nil, err
	}

	totalUnits := SumUnits(allocations)

	lines := make([]storage.PayoutLine, 0, len(payouts))
	var sum int64
	for _, p := range payouts {
		sum += p.AmountCredits
		lines = append(lines, storage.PayoutLine{
			UserId:        p.UserId,
			TotalUnits:    utils.FormatInt(p.TotalUnits),
			Share:         numbers.FormatShare(p.TotalUnits, totalUnits),
			AmountCredits: utils.FormatInt(p.AmountCredits),
		})
	}
	if poolTotalCredits > 0 && sum != poolTotalCredits {
		return nil, fmt.Errorf("payouts sum %d does not match pool total %d", sum, poolTotalCredits)
	}

	return &storage.PayoutStatement{
		EpochId:           epoch.Id,
		NodeId:            epoch.NodeId,
		AllocationSetHash: hash,
		PoolTotalCredits:  poolTotalCredits,
		Payouts:           lines,
	}, nil
}
