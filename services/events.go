package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/kds"
	"github.com/yeremiapane/restaurant-booking/utils"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventTableUpdated         = "table.updated"
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventInventoryDebited     = "inventory.debited"
	EventInventoryRestocked   = "inventory.restocked"
	EventInventoryAlert       = "inventory.alert"
	EventAlertsSnapshot       = "inventory.alerts_snapshot"
)

// Event is a committed domain fact. Events are published after the commit;
// a failed publish never undoes the operation.
type Event struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	AggregateID string      `json:"aggregate_id"`
	Payload     interface{} `json:"payload"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func newEvent(eventType, aggregateID string, payload interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// MultiPublisher fans an event out to every publisher in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, evt Event) {
	for _, p := range m {
		p.Publish(ctx, evt)
	}
}

// HubPublisher pushes events to the connected staff screens.
type HubPublisher struct{}

func (HubPublisher) Publish(_ context.Context, evt Event) {
	kds.BroadcastMessage(kds.Message{Event: hubEventName(evt.Type), Data: evt})
}

func hubEventName(eventType string) string {
	switch eventType {
	case EventOrderCreated, EventOrderStatusChanged:
		return kds.EventOrderUpdate
	case EventReservationCreated, EventReservationConfirmed, EventReservationCancelled:
		return kds.EventReservationUpdate
	case EventTableUpdated:
		return kds.EventTableUpdate
	case EventInventoryAlert:
		return kds.EventStockAlert
	case EventAlertsSnapshot:
		return kds.EventAlertsSnapshot
	default:
		return kds.EventInventoryUpdate
	}
}

// KafkaPublisher writes events as JSON to a topic, keyed by aggregate id so
// every event of one order, table or item lands on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireOne,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	value, err := json.Marshal(evt)
	if err != nil {
		utils.ErrorLogger.Errorf("Error encoding event %s: %v", evt.Type, err)
		return
	}

	// the request context may already be finishing; the event is committed
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafkaMessage(evt, value)); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":        evt.Type,
			"aggregate_id": evt.AggregateID,
		}).Errorf("Error publishing event to kafka: %v", err)
	}
}

func kafkaMessage(evt Event, value []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// AsyncPublisher hands events to a background worker so callers never wait
// on delivery. When the buffer is full the event is dropped and logged.
type AsyncPublisher struct {
	next  Publisher
	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, buffer int) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	p := &AsyncPublisher{
		next:  next,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for evt := range p.queue {
		p.next.Publish(context.Background(), evt)
	}
}

func (p *AsyncPublisher) Publish(_ context.Context, evt Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- evt:
	default:
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":        evt.Type,
			"aggregate_id": evt.AggregateID,
		}).Error("Event queue full, event dropped")
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx is done. Events published after Close are discarded.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
