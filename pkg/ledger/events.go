package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/storage"
	"go.uber.org/zap"
)

// InsertActivityEvents stores a batch of already deduplicated events. The batch is
// all or nothing; a duplicate id fails it loudly. Missing node and scope ids are
// filled in from the configuration, mismatching ones are rejected.
func (ls *LedgerService) InsertActivityEvents(ctx context.Context, events []*storage.ActivityEvent) (err error) {
	ctx, span := ls.startSpan(ctx, "ledger.InsertActivityEvents", 0)
	defer func() { endSpan(span, err) }()

	if len(events) == 0 {
		return nil
	}
	for i, e := range events {
		if err := ls.normalizeEvent(e); err != nil {
			return ledgerErrors.Validation(ledgerErrors.ErrInvalidEvent, "event %d: %v", i, err)
		}
	}

	if err := ls.store.InsertActivityEvents(ctx, events); err != nil {
		ls.logger.Sugar().Errorw("Failed to insert activity events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
		return err
	}
	ls.logger.Sugar().Infow("Inserted activity events", zap.Int("count", len(events)))
	ls.incr(metricsTypes.Metric_Incr_EventsIngested, float64(len(events)), ls.nodeLabels())
	return nil
}

func (ls *LedgerService) normalizeEvent(e *storage.ActivityEvent) error {
	if e == nil {
		return errors.New("event is nil")
	}
	if e.NodeId == "" {
		e.NodeId = ls.NodeId()
	}
	if e.ScopeId == "" {
		e.ScopeId = ls.ScopeId()
	}

	required := []struct {
		name  string
		value string
	}{
		{"id", e.Id},
		{"node_id", e.NodeId},
		{"scope_id", e.ScopeId},
		{"event_type", e.EventType},
		{"platform_user_id", e.PlatformUserId},
		{"payload_hash", e.PayloadHash},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	if e.NodeId != ls.NodeId() {
		return fmt.Errorf("node_id '%s' does not match this node", e.NodeId)
	}
	if e.EventTime.IsZero() {
		return errors.New("event_time is required")
	}

	e.EventTime = e.EventTime.UTC()
	if e.RetrievedAt.IsZero() {
		e.RetrievedAt = ls.now()
	}
	e.RetrievedAt = e.RetrievedAt.UTC()
	return nil
}
