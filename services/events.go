package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tablebot/models"
)

// EventHandler receives every published event.
type EventHandler func(ctx context.Context, e models.Event)

// EventBus fans events out to handlers. With Kafka the events make a round
// trip through the topic, so every bot instance's consumer group sees them;
// without Kafka they are delivered in-process. Delivery is best effort and a
// failed publish never fails the operation that produced the event.
type EventBus struct {
	kafka    *KafkaService
	mu       sync.RWMutex
	handlers []EventHandler
	log      *zap.Logger
}

// NewEventBus creates a bus; kafka may be nil.
func NewEventBus(kafka *KafkaService, log *zap.Logger) *EventBus {
	return &EventBus{
		kafka: kafka,
		log:   log.With(zap.String("component", "events")),
	}
}

// Subscribe registers h for all later events.
func (b *EventBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish stamps e with an id and time and delivers it. A nil bus drops it.
func (b *EventBus) Publish(ctx context.Context, e models.Event) {
	if b == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	if b.kafka == nil {
		b.dispatch(ctx, e)
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		b.log.Error("marshal event", zap.Error(err))
		return
	}
	if err := b.kafka.Publish(ctx, partitionKey(e), data); err != nil {
		// the topic never saw it, so local handlers still get it once
		b.log.Warn("publish to kafka failed, delivering locally", zap.String("type", string(e.Type)), zap.Error(err))
		b.dispatch(ctx, e)
	}
}

// Run consumes events from Kafka until ctx is done. Without Kafka it only
// waits for ctx.
func (b *EventBus) Run(ctx context.Context) error {
	if b.kafka == nil {
		<-ctx.Done()
		return nil
	}
	return b.kafka.Consume(ctx, func(ctx context.Context, message []byte) {
		var e models.Event
		if err := json.Unmarshal(message, &e); err != nil {
			b.log.Warn("dropping undecodable event", zap.Error(err))
			return
		}
		b.dispatch(ctx, e)
	})
}

func (b *EventBus) dispatch(ctx context.Context, e models.Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked", zap.Any("panic", r), zap.String("type", string(e.Type)))
				}
			}()
			h(ctx, e)
		}()
	}
}

func partitionKey(e models.Event) string {
	if e.ParticipantID != "" {
		return e.ParticipantID
	}
	return e.RequestID
}
