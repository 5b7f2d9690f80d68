package allocations

import (
	"math"
	"math/big"
	"sort"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"github.com/epochledger/epochledger/pkg/weights"
)

// UserAllocation is the weighted unit total of one user for one epoch.
type UserAllocation struct {
	UserId        string
	ProposedUnits int64
	ActivityCount int64
}

// Compute groups the included curations by user and sums the weight of each
// event type. The result is sorted by user id so repeated runs over the same
// snapshot are identical. Rows without a resolved user are skipped and counted.
//
// An event type missing from the weight config aborts the computation, as does a
// user whose units would not fit in an int64.
func Compute(snapshot []*storage.CurationSnapshotRow, wc *weights.WeightConfig) ([]*UserAllocation, int, error) {
	if wc == nil {
		return nil, 0, ledgerErrors.Configuration(ledgerErrors.ErrInvalidWeightConfig, "weight config is required")
	}
	byUser := make(map[string]*UserAllocation)
	unresolved := 0

	for _, row := range snapshot {
		weight, err := wc.Weight(row.EventType)
		if err != nil {
			return nil, 0, err
		}
		if row.UserId == nil || *row.UserId == "" {
			unresolved++
			continue
		}
		ua, ok := byUser[*row.UserId]
		if !ok {
			ua = &UserAllocation{UserId: *row.UserId}
			byUser[*row.UserId] = ua
		}
		if ua.ProposedUnits > math.MaxInt64-weight {
			return nil, 0, ledgerErrors.Validation(ledgerErrors.ErrUnitsOverflow, "user '%s' at event '%s'", ua.UserId, row.EventId)
		}
		ua.ProposedUnits += weight
		ua.ActivityCount++
	}

	result := make([]*UserAllocation, 0, len(byUser))
	for _, ua := range byUser {
		result = append(result, ua)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserId < result[j].UserId
	})
	return result, unresolved, nil
}

// TotalUnits sums the proposed units of every allocation.
func TotalUnits(allocations []*UserAllocation) *big.Int {
	total := new(big.Int)
	for _, a := range allocations {
		total.Add(total, big.NewInt(a.ProposedUnits))
	}
	return total
}

func ToStorageRows(epochId uint64, nodeId string, allocations []*UserAllocation) []*storage.Allocation {
	rows := make([]*storage.Allocation, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, &storage.Allocation{
			EpochId:       epochId,
			UserId:        a.UserId,
			NodeId:        nodeId,
			ProposedUnits: a.ProposedUnits,
			ActivityCount: a.ActivityCount,
		})
	}
	return rows
}
