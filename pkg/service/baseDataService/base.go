package baseDataService

import (
	"context"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
)

type BaseDataService struct {
	Store  storage.LedgerStore
	NodeId string
}

// GetClosedEpoch returns the epoch only once it is closed. Missing and open epochs
// produce the same not-found error so nothing leaks before close.
func (b *BaseDataService) GetClosedEpoch(ctx context.Context, epochId uint64) (*storage.Epoch, error) {
	epoch, err := b.Store.GetEpoch(ctx, b.NodeId, epochId)
	if err != nil {
		return nil, err
	}
	if epoch == nil || !epoch.IsClosed() {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d", epochId)
	}
	return epoch, nil
}
