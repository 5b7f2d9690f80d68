package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/epochledger/epochledger/pkg/payouts"
	"github.com/epochledger/epochledger/pkg/service/types"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/types/numbers"
	"github.com/epochledger/epochledger/pkg/utils"
)

// VerifyResult describes how a published statement compares with one recomputed from the published allocations.
type VerifyResult struct {
	EpochId           uint64
	AllocationSetHash string
	Mismatches        []string
}

func (r *VerifyResult) Ok() bool {
	return len(r.Mismatches) == 0
}

// VerifyEpoch fetches an epoch's allocations and statement and recomputes the statement locally.
func (c *Client) VerifyEpoch(ctx context.Context, epochId uint64) (*VerifyResult, error) {
	allocations, err := c.GetAllocations(ctx, epochId)
	if err != nil {
		return nil, err
	}
	statement, err := c.GetStatement(ctx, epochId)
	if err != nil {
		return nil, err
	}
	return VerifyStatement(allocations, statement)
}

func VerifyStatement(allocations *types.EpochAllocationsResponse, statement *types.EpochStatementResponse) (*VerifyResult, error) {
	if statement.Statement == nil {
		return nil, fmt.Errorf("epoch %d has no published statement", statement.EpochId)
	}

	rows := make([]*storage.Allocation, 0, len(allocations.Allocations))
	for _, a := range allocations.Allocations {
		units, err := numbers.ParseIntegerString(a.ProposedUnits)
		if err != nil {
			return nil, fmt.Errorf("allocation for '%s': %w", a.UserId, err)
		}
		rows = append(rows, &storage.Allocation{EpochId: allocations.EpochId, UserId: a.UserId, ProposedUnits: units})
	}
	poolTotal, err := numbers.ParseIntegerString(statement.Statement.PoolTotalCredits)
	if err != nil {
		return nil, fmt.Errorf("pool total: %w", err)
	}

	hash, err := payouts.AllocationSetHash(statement.EpochId, rows)
	if err != nil {
		return nil, err
	}
	result := &VerifyResult{EpochId: statement.EpochId, AllocationSetHash: hash}
	if hash != statement.Statement.AllocationSetHash {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf("allocation set hash: published %s, recomputed %s", statement.Statement.AllocationSetHash, hash))
	}

	expected, err := payouts.Apportion(rows, poolTotal)
	if err != nil {
		return nil, err
	}
	totalUnits := payouts.SumUnits(rows)

	published := make(map[string]*types.StatementPayout, len(statement.Statement.Payouts))
	for _, p := range statement.Statement.Payouts {
		published[p.UserId] = p
	}
	if len(published) != len(expected) {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf("payout count: published %d, recomputed %d", len(published), len(expected)))
	}
	publishedAmounts := make([]string, 0, len(statement.Statement.Payouts))
	for _, p := range statement.Statement.Payouts {
		publishedAmounts = append(publishedAmounts, p.AmountCredits)
	}
	sum, err := numbers.SumIntegerStrings(publishedAmounts)
	if err != nil {
		return nil, err
	}
	if len(expected) > 0 && sum.Cmp(big.NewInt(poolTotal)) != 0 {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf("payouts sum to %s, pool total is %d", sum.String(), poolTotal))
	}

	for _, p := range expected {
		got, ok := published[p.UserId]
		if !ok {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: missing from statement", p.UserId))
			continue
		}
		if want := utils.FormatInt(p.AmountCredits); got.AmountCredits != want {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: amount published %s, recomputed %s", p.UserId, got.AmountCredits, want))
		}
		if want := utils.FormatInt(p.TotalUnits); got.TotalUnits != want {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: units published %s, recomputed %s", p.UserId, got.TotalUnits, want))
		}
		if want := numbers.FormatShare(p.TotalUnits, totalUnits); got.Share != want {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("%s: share published %s, recomputed %s", p.UserId, got.Share, want))
		}
	}
	return result, nil
}
