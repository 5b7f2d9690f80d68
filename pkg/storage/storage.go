package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// LedgerStore is the relational port consumed by the ledger orchestration.
// Every read and write is scoped to a node; a valid epoch id from another node
// behaves exactly like a missing one.
type LedgerStore interface {
	CreateEpoch(ctx context.Context, epoch *Epoch) (*Epoch, error)
	GetEpoch(ctx context.Context, nodeId string, epochId uint64) (*Epoch, error)
	// LockEpoch is GetEpoch holding a row lock until the surrounding transaction ends.
	// Every write that requires an open epoch takes it first.
	LockEpoch(ctx context.Context, nodeId string, epochId uint64) (*Epoch, error)
	ListEpochs(ctx context.Context, nodeId string, status EpochStatus, limit int, offset int) ([]*Epoch, error)

	InsertActivityEvents(ctx context.Context, events []*ActivityEvent) error
	ListEventsInWindow(ctx context.Context, nodeId string, scopeId string, start time.Time, end time.Time) ([]*ActivityEvent, error)

	// InsertCurationDoNothing inserts rows whose (epoch_id, event_id) is not yet present
	// and returns how many were inserted. Existing rows are left untouched.
	InsertCurationDoNothing(ctx context.Context, rows []*Curation) (int64, error)
	GetCuration(ctx context.Context, nodeId string, epochId uint64, eventId string) (*Curation, error)
	SetCurationIncluded(ctx context.Context, nodeId string, epochId uint64, eventId string, included bool) error
	ListCurationSnapshot(ctx context.Context, nodeId string, epochId uint64) ([]*CurationSnapshotRow, error)

	// InsertAllocations upserts by (epoch_id, user_id), replacing the unit totals.
	InsertAllocations(ctx context.Context, rows []*Allocation) error
	DeleteAllocationsNotIn(ctx context.Context, nodeId string, epochId uint64, userIds []string) (int64, error)
	ListAllocations(ctx context.Context, nodeId string, epochId uint64) ([]*Allocation, error)

	InsertPoolComponent(ctx context.Context, component *PoolComponent) (*PoolComponent, error)
	ListPoolComponents(ctx context.Context, nodeId string, epochId uint64) ([]*PoolComponent, error)
	SumPoolComponents(ctx context.Context, nodeId string, epochId uint64) (int64, error)

	// CloseEpoch moves an open epoch to closed. It fails with a conflict if the epoch is
	// not open or poolTotalCredits differs from the sum of its pool components.
	CloseEpoch(ctx context.Context, nodeId string, epochId uint64, poolTotalCredits int64, closedAt time.Time) (*Epoch, error)
	InsertPayoutStatement(ctx context.Context, statement *PayoutStatement) (*PayoutStatement, error)
	GetPayoutStatement(ctx context.Context, nodeId string, epochId uint64) (*PayoutStatement, error)

	GetJobRun(ctx context.Context, idempotencyKey string) (*LedgerJobRun, error)
	RecordJobRun(ctx context.Context, run *LedgerJobRun) error

	// Transaction runs fn against a store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx LedgerStore) error) error
}

type EpochStatus string

var (
	EpochStatus_Open   EpochStatus = "open"
	EpochStatus_Closed EpochStatus = "closed"
)

// Tables.
type Epoch struct {
	Id               uint64                               `gorm:"primaryKey;autoIncrement"`
	NodeId           string                               `gorm:"index:idx_epochs_node_status;not null"`
	ScopeId          string                               `gorm:"not null"`
	PeriodStart      time.Time                            `gorm:"not null"`
	PeriodEnd        time.Time                            `gorm:"not null"`
	WeightConfig     datatypes.JSONType[map[string]int64] `gorm:"not null"`
	Status           EpochStatus                          `gorm:"index:idx_epochs_node_status;not null"`
	PoolTotalCredits *int64
	ClosedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (e *Epoch) IsClosed() bool {
	return e.Status == EpochStatus_Closed
}

type ActivityEvent struct {
	Id              string    `gorm:"primaryKey"`
	NodeId          string    `gorm:"index:idx_activity_events_window;not null"`
	ScopeId         string    `gorm:"index:idx_activity_events_window;not null"`
	Source          string    `gorm:"not null"`
	EventType       string    `gorm:"not null"`
	PlatformUserId  string    `gorm:"not null"`
	PayloadHash     string    `gorm:"not null"`
	Producer        string    `gorm:"not null"`
	ProducerVersion string    `gorm:"not null"`
	EventTime       time.Time `gorm:"index:idx_activity_events_window;not null"`
	RetrievedAt     time.Time `gorm:"not null"`
	PlatformLogin   *string
	ArtifactUrl     *string
	CreatedAt       time.Time
}

type Curation struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement"`
	EpochId   uint64 `gorm:"uniqueIndex:uniq_curations_epoch_event;not null"`
	EventId   string `gorm:"uniqueIndex:uniq_curations_epoch_event;not null"`
	NodeId    string `gorm:"not null"`
	Included  bool   `gorm:"not null"`
	UserId    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurationSnapshotRow is an included curation joined with the event type it refers to.
type CurationSnapshotRow struct {
	EventId   string
	UserId    *string
	EventType string
}

type Allocation struct {
	Id            uint64 `gorm:"primaryKey;autoIncrement"`
	EpochId       uint64 `gorm:"uniqueIndex:uniq_allocations_epoch_user;not null"`
	UserId        string `gorm:"uniqueIndex:uniq_allocations_epoch_user;not null"`
	NodeId        string `gorm:"not null"`
	ProposedUnits int64  `gorm:"not null"`
	ActivityCount int64  `gorm:"not null"`
}

type PoolComponent struct {
	Id               uint64         `gorm:"primaryKey;autoIncrement"`
	EpochId          uint64         `gorm:"uniqueIndex:uniq_pool_components_epoch_component;not null"`
	ComponentId      string         `gorm:"uniqueIndex:uniq_pool_components_epoch_component;not null"`
	NodeId           string         `gorm:"not null"`
	AlgorithmVersion string         `gorm:"not null"`
	InputsJson       datatypes.JSON `gorm:"not null"`
	AmountCredits    int64          `gorm:"not null"`
	CreatedAt        time.Time
}

type PayoutLine struct {
	UserId        string `json:"user_id"`
	TotalUnits    string `json:"total_units"`
	Share         string `json:"share"`
	AmountCredits string `json:"amount_credits"`
}

type PayoutStatement struct {
	Id                uint64                          `gorm:"primaryKey;autoIncrement"`
	EpochId           uint64                          `gorm:"uniqueIndex:uniq_payout_statements_epoch;not null"`
	NodeId            string                          `gorm:"not null"`
	AllocationSetHash string                          `gorm:"not null"`
	PoolTotalCredits  int64                           `gorm:"not null"`
	Payouts           datatypes.JSONSlice[PayoutLine] `gorm:"not null"`
	CreatedAt         time.Time
}

type JobRunStatus string

var (
	JobRunStatus_Completed JobRunStatus = "completed"
)

type LedgerJobRun struct {
	IdempotencyKey string `gorm:"primaryKey"`
	EpochId        uint64 `gorm:"not null"`
	Operation      string `gorm:"not null"`
	Status         JobRunStatus
	CompletedAt    time.Time
}

// AllTables lists every table model, in creation order.
func AllTables() []any {
	return []any{
		&Epoch{},
		&ActivityEvent{},
		&Curation{},
		&Allocation{},
		&PoolComponent{},
		&PayoutStatement{},
		&LedgerJobRun{},
	}
}
