package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/postgres/helpers"
	"github.com/epochledger/epochledger/pkg/storage"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatchSize keeps a single statement well under the bind parameter limits
// of both postgres and sqlite.
const insertBatchSize = 500

type PostgresLedgerStore struct {
	Db           *gorm.DB
	Logger       *zap.Logger
	GlobalConfig *config.Config

	// inTx is set on stores handed to Transaction callbacks
	inTx bool
}

func NewPostgresLedgerStore(db *gorm.DB, l *zap.Logger, cfg *config.Config) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		Db:           db,
		Logger:       l,
		GlobalConfig: cfg,
	}
}

func (s *PostgresLedgerStore) withTx(tx *gorm.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		Db:           tx,
		Logger:       s.Logger,
		GlobalConfig: s.GlobalConfig,
		inTx:         true,
	}
}

func (s *PostgresLedgerStore) currentTx() *gorm.DB {
	if s.inTx {
		return s.Db
	}
	return nil
}

func (s *PostgresLedgerStore) Transaction(ctx context.Context, fn func(tx storage.LedgerStore) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.withTx(tx))
	})
}

func (s *PostgresLedgerStore) CreateEpoch(ctx context.Context, epoch *storage.Epoch) (*storage.Epoch, error) {
	if !epoch.PeriodStart.Before(epoch.PeriodEnd) {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidPeriod, "period [%s, %s)", epoch.PeriodStart, epoch.PeriodEnd)
	}
	epoch.Status = storage.EpochStatus_Open
	epoch.PoolTotalCredits = nil
	epoch.ClosedAt = nil

	res := s.Db.WithContext(ctx).Model(&storage.Epoch{}).Clauses(clause.Returning{}).Create(epoch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create epoch for node '%s': %w", epoch.NodeId, res.Error)
	}
	return epoch, nil
}

// GetEpoch returns nil, nil when no epoch with that id exists for the node.
func (s *PostgresLedgerStore) GetEpoch(ctx context.Context, nodeId string, epochId uint64) (*storage.Epoch, error) {
	return s.getEpoch(s.Db.WithContext(ctx), nodeId, epochId)
}

// LockEpoch reads the epoch with SELECT ... FOR UPDATE. Outside a transaction
// the lock is released as soon as the statement completes.
func (s *PostgresLedgerStore) LockEpoch(ctx context.Context, nodeId string, epochId uint64) (*storage.Epoch, error) {
	return s.getEpoch(s.Db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), nodeId, epochId)
}

func (s *PostgresLedgerStore) getEpoch(query *gorm.DB, nodeId string, epochId uint64) (*storage.Epoch, error) {
	var epoch storage.Epoch
	res := query.
		Where("id = ? and node_id = ?", epochId, nodeId).
		First(&epoch)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get epoch '%d': %w", epochId, res.Error)
	}
	return &epoch, nil
}

func (s *PostgresLedgerStore) ListEpochs(ctx context.Context, nodeId string, status storage.EpochStatus, limit int, offset int) ([]*storage.Epoch, error) {
	epochs := make([]*storage.Epoch, 0)
	query := s.Db.WithContext(ctx).Where("node_id = ?", nodeId)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	res := query.
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&epochs)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list epochs: %w", res.Error)
	}
	return epochs, nil
}

// InsertActivityEvents writes the whole batch or nothing. A duplicate id, in the
// batch itself or already stored, fails the batch.
func (s *PostgresLedgerStore) InsertActivityEvents(ctx context.Context, events []*storage.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.Id]; ok {
			return ledgerErrors.Validation(ledgerErrors.ErrDuplicateEvent, "event '%s' appears more than once in the batch", e.Id)
		}
		seen[e.Id] = struct{}{}
	}

	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (int, error) {
		res := tx.WithContext(ctx).Model(&storage.ActivityEvent{}).CreateInBatches(events, insertBatchSize)
		if res.Error != nil {
			if helpers.IsDuplicateKeyError(res.Error) {
				return 0, ledgerErrors.Validation(ledgerErrors.ErrDuplicateEvent, "batch of %d events", len(events))
			}
			return 0, fmt.Errorf("failed to insert activity events: %w", res.Error)
		}
		return int(res.RowsAffected), nil
	}, s.Db.WithContext(ctx), s.currentTx())
	return err
}

func (s *PostgresLedgerStore) ListEventsInWindow(ctx context.Context, nodeId string, scopeId string, start time.Time, end time.Time) ([]*storage.ActivityEvent, error) {
	events := make([]*storage.ActivityEvent, 0)
	res := s.Db.WithContext(ctx).
		Where("node_id = ? and scope_id = ?", nodeId, scopeId).
		Where("event_time >= ? and event_time < ?", start, end).
		Order("event_time asc, id asc").
		Find(&events)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list events in window: %w", res.Error)
	}
	return events, nil
}

func (s *PostgresLedgerStore) InsertCurationDoNothing(ctx context.Context, rows []*storage.Curation) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.Db.WithContext(ctx).
		Model(&storage.Curation{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "epoch_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		return 0, pkgErrors.Wrapf(res.Error, "failed to insert %d curations", len(rows))
	}
	return res.RowsAffected, nil
}

func (s *PostgresLedgerStore) GetCuration(ctx context.Context, nodeId string, epochId uint64, eventId string) (*storage.Curation, error) {
	var curation storage.Curation
	res := s.Db.WithContext(ctx).
		Where("node_id = ? and epoch_id = ? and event_id = ?", nodeId, epochId, eventId).
		First(&curation)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgErrors.Wrapf(res.Error, "failed to get curation for event '%s'", eventId)
	}
	return &curation, nil
}

func (s *PostgresLedgerStore) SetCurationIncluded(ctx context.Context, nodeId string, epochId uint64, eventId string, included bool) error {
	res := s.Db.WithContext(ctx).
		Model(&storage.Curation{}).
		Where("node_id = ? and epoch_id = ? and event_id = ?", nodeId, epochId, eventId).
		Updates(map[string]interface{}{
			"included":   included,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgErrors.Wrapf(res.Error, "failed to update curation for event '%s'", eventId)
	}
	if res.RowsAffected == 0 {
		return ledgerErrors.NotFound(ledgerErrors.ErrCurationNotFound, "epoch %d event '%s'", epochId, eventId)
	}
	return nil
}

func (s *PostgresLedgerStore) ListCurationSnapshot(ctx context.Context, nodeId string, epochId uint64) ([]*storage.CurationSnapshotRow, error) {
	rows := make([]*storage.CurationSnapshotRow, 0)
	res := s.Db.WithContext(ctx).
		Table("curations as c").
		Select("c.event_id as event_id, c.user_id as user_id, e.event_type as event_type").
		Joins("join activity_events as e on e.id = c.event_id and e.node_id = c.node_id").
		Where("c.node_id = ? and c.epoch_id = ? and c.included = ?", nodeId, epochId, true).
		Order("c.event_id asc").
		Scan(&rows)
	if res.Error != nil {
		return nil, pkgErrors.Wrapf(res.Error, "failed to load curation snapshot for epoch %d", epochId)
	}
	return rows, nil
}

func (s *PostgresLedgerStore) InsertAllocations(ctx context.Context, rows []*storage.Allocation) error {
	if len(rows) == 0 {
		return nil
	}
	res := s.Db.WithContext(ctx).
		Model(&storage.Allocation{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "epoch_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"proposed_units", "activity_count"}),
		}).
		CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		return pkgErrors.Wrapf(res.Error, "failed to upsert %d allocations", len(rows))
	}
	return nil
}

func (s *PostgresLedgerStore) DeleteAllocationsNotIn(ctx context.Context, nodeId string, epochId uint64, userIds []string) (int64, error) {
	query := s.Db.WithContext(ctx).Where("node_id = ? and epoch_id = ?", nodeId, epochId)
	if len(userIds) > 0 {
		query = query.Where("user_id not in ?", userIds)
	}
	res := query.Delete(&storage.Allocation{})
	if res.Error != nil {
		return 0, pkgErrors.Wrapf(res.Error, "failed to delete stale allocations for epoch %d", epochId)
	}
	return res.RowsAffected, nil
}

// ListAllocations returns allocations ordered by user id.
func (s *PostgresLedgerStore) ListAllocations(ctx context.Context, nodeId string, epochId uint64) ([]*storage.Allocation, error) {
	allocations := make([]*storage.Allocation, 0)
	res := s.Db.WithContext(ctx).
		Where("node_id = ? and epoch_id = ?", nodeId, epochId).
		Order("user_id asc").
		Find(&allocations)
	if res.Error != nil {
		return nil, pkgErrors.Wrapf(res.Error, "failed to list allocations for epoch %d", epochId)
	}
	return allocations, nil
}

func (s *PostgresLedgerStore) InsertPoolComponent(ctx context.Context, component *storage.PoolComponent) (*storage.PoolComponent, error) {
	if component.AmountCredits < 0 {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrNegativeAmount, "component '%s' amount %d", component.ComponentId, component.AmountCredits)
	}
	if len(component.InputsJson) == 0 {
		component.InputsJson = []byte(`{}`)
	}
	res := s.Db.WithContext(ctx).Model(&storage.PoolComponent{}).Clauses(clause.Returning{}).Create(component)
	if res.Error != nil {
		if helpers.IsDuplicateKeyError(res.Error) {
			return nil, ledgerErrors.Conflict(ledgerErrors.ErrDuplicatePoolComponent, "epoch %d component '%s'", component.EpochId, component.ComponentId)
		}
		return nil, fmt.Errorf("failed to insert pool component '%s': %w", component.ComponentId, res.Error)
	}
	return component, nil
}

func (s *PostgresLedgerStore) ListPoolComponents(ctx context.Context, nodeId string, epochId uint64) ([]*storage.PoolComponent, error) {
	components := make([]*storage.PoolComponent, 0)
	res := s.Db.WithContext(ctx).
		Where("node_id = ? and epoch_id = ?", nodeId, epochId).
		Order("component_id asc").
		Find(&components)
	if res.Error != nil {
		return nil, pkgErrors.Wrapf(res.Error, "failed to list pool components for epoch %d", epochId)
	}
	return components, nil
}

func (s *PostgresLedgerStore) SumPoolComponents(ctx context.Context, nodeId string, epochId uint64) (int64, error) {
	var total int64
	res := s.Db.WithContext(ctx).
		Model(&storage.PoolComponent{}).
		Select("coalesce(sum(amount_credits), 0)").
		Where("node_id = ? and epoch_id = ?", nodeId, epochId).
		Scan(&total)
	if res.Error != nil {
		return 0, pkgErrors.Wrapf(res.Error, "failed to sum pool components for epoch %d", epochId)
	}
	return total, nil
}

// CloseEpoch must run inside a transaction together with the statement insert.
// The epoch row stays locked until that transaction ends, so writers that lock
// it through LockEpoch wait for the close and then see the epoch as closed. The
// conditional update still guards against a second close.
func (s *PostgresLedgerStore) CloseEpoch(ctx context.Context, nodeId string, epochId uint64, poolTotalCredits int64, closedAt time.Time) (*storage.Epoch, error) {
	epoch, err := s.LockEpoch(ctx, nodeId, epochId)
	if err != nil {
		return nil, err
	}
	if epoch == nil {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d", epochId)
	}
	if epoch.Status != storage.EpochStatus_Open {
		return nil, ledgerErrors.Conflict(ledgerErrors.ErrEpochNotOpen, "epoch %d has status '%s'", epochId, epoch.Status)
	}

	componentTotal, err := s.SumPoolComponents(ctx, nodeId, epochId)
	if err != nil {
		return nil, err
	}
	if componentTotal != poolTotalCredits {
		return nil, ledgerErrors.Conflict(ledgerErrors.ErrPoolTotalMismatch, "epoch %d: requested %d, components sum to %d", epochId, poolTotalCredits, componentTotal)
	}

	res := s.Db.WithContext(ctx).
		Model(&storage.Epoch{}).
		Where("id = ? and node_id = ? and status = ?", epochId, nodeId, storage.EpochStatus_Open).
		Updates(map[string]interface{}{
			"status":             storage.EpochStatus_Closed,
			"pool_total_credits": poolTotalCredits,
			"closed_at":          closedAt,
			"updated_at":         closedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to close epoch %d: %w", epochId, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, ledgerErrors.Conflict(ledgerErrors.ErrEpochNotOpen, "epoch %d was closed concurrently", epochId)
	}

	epoch.Status = storage.EpochStatus_Closed
	epoch.PoolTotalCredits = &poolTotalCredits
	epoch.ClosedAt = &closedAt
	epoch.UpdatedAt = closedAt
	return epoch, nil
}

func (s *PostgresLedgerStore) InsertPayoutStatement(ctx context.Context, statement *storage.PayoutStatement) (*storage.PayoutStatement, error) {
	res := s.Db.WithContext(ctx).Model(&storage.PayoutStatement{}).Clauses(clause.Returning{}).Create(statement)
	if res.Error != nil {
		if helpers.IsDuplicateKeyError(res.Error) {
			return nil, ledgerErrors.Conflict(ledgerErrors.ErrStatementExists, "epoch %d", statement.EpochId)
		}
		return nil, fmt.Errorf("failed to insert payout statement for epoch %d: %w", statement.EpochId, res.Error)
	}
	return statement, nil
}

// GetPayoutStatement returns nil, nil when the epoch has no statement.
func (s *PostgresLedgerStore) GetPayoutStatement(ctx context.Context, nodeId string, epochId uint64) (*storage.PayoutStatement, error) {
	var statement storage.PayoutStatement
	res := s.Db.WithContext(ctx).
		Where("node_id = ? and epoch_id = ?", nodeId, epochId).
		First(&statement)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payout statement for epoch %d: %w", epochId, res.Error)
	}
	return &statement, nil
}

func (s *PostgresLedgerStore) GetJobRun(ctx context.Context, idempotencyKey string) (*storage.LedgerJobRun, error) {
	var run storage.LedgerJobRun
	res := s.Db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&run)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgErrors.Wrapf(res.Error, "failed to get job run '%s'", idempotencyKey)
	}
	return &run, nil
}

func (s *PostgresLedgerStore) RecordJobRun(ctx context.Context, run *storage.LedgerJobRun) error {
	res := s.Db.WithContext(ctx).
		Model(&storage.LedgerJobRun{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(run)
	if res.Error != nil {
		return pkgErrors.Wrapf(res.Error, "failed to record job run '%s'", run.IdempotencyKey)
	}
	return nil
}
