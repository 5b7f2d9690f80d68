package eventBus

import (
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

// EventBus fans ledger lifecycle events out to subscribed consumers.
// Publishing never blocks: a consumer with a full channel misses the event.
type EventBus struct {
	consumers *eventBusTypes.ConsumerList
	logger    *zap.Logger
}

func NewEventBus(l *zap.Logger) *EventBus {
	return &EventBus{
		consumers: eventBusTypes.NewConsumerList(),
		logger:    l,
	}
}

func (eb *EventBus) Subscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Add(consumer)
	eb.logger.Sugar().Debugw("Subscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Unsubscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Remove(consumer)
	eb.logger.Sugar().Infow("Unsubscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Publish(event *eventBusTypes.Event) {
	eb.logger.Sugar().Debugw("Publishing event", zap.String("eventName", event.Name))
	for _, consumer := range eb.consumers.GetAll() {
		if consumer.Channel == nil {
			eb.logger.Sugar().Debugw("Consumer channel is nil", zap.String("consumerId", string(consumer.Id)))
			continue
		}
		if consumer.Context != nil && consumer.Context.Err() != nil {
			continue
		}
		select {
		case consumer.Channel <- event:
			eb.logger.Sugar().Debugw("Published event to consumer",
				zap.String("consumerId", string(consumer.Id)),
				zap.String("eventName", event.Name),
			)
		default:
			eb.logger.Sugar().Debugw("No receiver available, or channel is full",
				zap.String("consumerId", string(consumer.Id)),
				zap.String("eventName", event.Name),
			)
		}
	}
}
