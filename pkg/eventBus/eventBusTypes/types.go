package eventBusTypes

import (
	"context"
	"sync"
)

const (
	Event_EpochClosed           = "epoch.closed"
	Event_AllocationsRecomputed = "allocations.recomputed"
	Event_CurationsSeeded       = "curations.seeded"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot of the current consumers.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	consumers := make([]*Consumer, len(cl.consumers))
	copy(consumers, cl.consumers)
	return consumers
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

type EpochClosedData struct {
	NodeId            string
	EpochId           uint64
	PoolTotalCredits  int64
	AllocationSetHash string
	PayoutCount       int
}

type AllocationsRecomputedData struct {
	NodeId     string
	EpochId    uint64
	TotalUnits string
	UserCount  int
	Unresolved int
}

type CurationsSeededData struct {
	NodeId   string
	EpochId  uint64
	Inserted int64
}
