// Package ledger orchestrates the epoch lifecycle on top of the ledger store:
// intake, curation, allocation, funding and close.
package ledger

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/internal/tracing"
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LedgerService struct {
	store        storage.LedgerStore
	logger       *zap.Logger
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink
	eventBus     eventBusTypes.IEventBus
	tracer       trace.Tracer

	now func() time.Time
}

func NewLedgerService(
	store storage.LedgerStore,
	ms *metrics.MetricsSink,
	eb eventBusTypes.IEventBus,
	l *zap.Logger,
	cfg *config.Config,
) *LedgerService {
	return &LedgerService{
		store:        store,
		logger:       l,
		globalConfig: cfg,
		metricsSink:  ms,
		eventBus:     eb,
		tracer:       tracing.Tracer("epochledger/ledger"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// withStore returns a copy of the service bound to another store, typically a transaction.
func (ls *LedgerService) withStore(store storage.LedgerStore) *LedgerService {
	clone := *ls
	clone.store = store
	return &clone
}

func (ls *LedgerService) NodeId() string {
	return ls.globalConfig.LedgerConfig.NodeId
}

func (ls *LedgerService) ScopeId() string {
	return ls.globalConfig.LedgerConfig.ScopeId
}

// getOpenEpoch locks an epoch that is about to be mutated. store must be a
// transaction so the lock covers the writes that follow. Missing epochs are
// not-found and closed epochs are a conflict.
func (ls *LedgerService) getOpenEpoch(ctx context.Context, store storage.LedgerStore, epochId uint64) (*storage.Epoch, error) {
	epoch, err := store.LockEpoch(ctx, ls.NodeId(), epochId)
	if err != nil {
		return nil, err
	}
	if epoch == nil {
		return nil, ledgerErrors.NotFound(ledgerErrors.ErrEpochNotFound, "epoch %d", epochId)
	}
	if epoch.Status != storage.EpochStatus_Open {
		return nil, ledgerErrors.Conflict(ledgerErrors.ErrEpochNotOpen, "epoch %d has status '%s'", epochId, epoch.Status)
	}
	return epoch, nil
}

func (ls *LedgerService) nodeLabels(extra ...metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	labels := []metricsTypes.MetricsLabel{{Name: "node_id", Value: ls.NodeId()}}
	return append(labels, extra...)
}

func (ls *LedgerService) incr(name string, value float64, labels []metricsTypes.MetricsLabel) {
	if ls.metricsSink == nil {
		return
	}
	if err := ls.metricsSink.Incr(name, labels, value); err != nil {
		ls.logger.Sugar().Warnw("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (ls *LedgerService) gauge(name string, value float64, labels []metricsTypes.MetricsLabel) {
	if ls.metricsSink == nil {
		return
	}
	if err := ls.metricsSink.Gauge(name, value, labels); err != nil {
		ls.logger.Sugar().Warnw("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (ls *LedgerService) timing(name string, since time.Time, labels []metricsTypes.MetricsLabel) {
	if ls.metricsSink == nil {
		return
	}
	if err := ls.metricsSink.Timing(name, time.Since(since), labels); err != nil {
		ls.logger.Sugar().Warnw("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (ls *LedgerService) publish(name string, data any) {
	if ls.eventBus == nil {
		return
	}
	ls.eventBus.Publish(&eventBusTypes.Event{Name: name, Data: data})
}

func (ls *LedgerService) startSpan(ctx context.Context, name string, epochId uint64) (context.Context, trace.Span) {
	return ls.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("ledger.node_id", ls.NodeId()),
		attribute.Int64("ledger.epoch_id", int64(epochId)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
