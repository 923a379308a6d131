package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"tablebot/config"
)

// KafkaService carries published events through one Kafka topic.
type KafkaService struct {
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	topic    string
	metrics  *KafkaMetrics
	log      *zap.Logger
}

// KafkaMetrics counters exposed by the monitor endpoint
type KafkaMetrics struct {
	messagesSent     int64
	messagesReceived int64
	errors           int64
	mu               sync.RWMutex
}

// MessageHandler handles one consumed message value.
type MessageHandler func(ctx context.Context, message []byte)

// NewKafkaService connects the producer and consumer group and makes sure the
// topic exists.
func NewKafkaService(cfg *config.Config, log *zap.Logger) (*KafkaService, error) {
	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Version = sarama.V2_5_0_0

	if err := ensureTopic(cfg, producerConfig); err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.KafkaBootstrapServers, producerConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	consumerConfig.Consumer.Offsets.AutoCommit.Enable = true
	consumerConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	consumerConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	consumerConfig.Version = sarama.V2_5_0_0

	consumer, err := sarama.NewConsumerGroup(cfg.KafkaBootstrapServers, cfg.KafkaConsumerGroup, consumerConfig)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return NewKafkaServiceWithClients(producer, consumer, cfg.KafkaTopic, log), nil
}

// NewKafkaServiceWithClients wraps already-built clients. consumer may be nil
// for a publish-only service.
func NewKafkaServiceWithClients(producer sarama.SyncProducer, consumer sarama.ConsumerGroup, topic string, log *zap.Logger) *KafkaService {
	return &KafkaService{
		producer: producer,
		consumer: consumer,
		topic:    topic,
		metrics:  &KafkaMetrics{},
		log:      log.With(zap.String("component", "kafka")),
	}
}

func ensureTopic(cfg *config.Config, saramaConfig *sarama.Config) error {
	admin, err := sarama.NewClusterAdmin(cfg.KafkaBootstrapServers, saramaConfig)
	if err != nil {
		return fmt.Errorf("create kafka admin: %w", err)
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if _, exists := topics[cfg.KafkaTopic]; exists {
		return nil
	}

	err = admin.CreateTopic(cfg.KafkaTopic, &sarama.TopicDetail{
		NumPartitions:     int32(cfg.KafkaPartitions),
		ReplicationFactor: int16(cfg.KafkaReplication),
		ConfigEntries: map[string]*string{
			"retention.ms":   strPtr("604800000"), // 7 days
			"cleanup.policy": strPtr("delete"),
		},
	}, false)
	if err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return fmt.Errorf("create kafka topic: %w", err)
	}
	return nil
}

// Publish sends one message synchronously. key selects the partition.
func (s *KafkaService) Publish(ctx context.Context, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Value:     sarama.ByteEncoder(message),
		Timestamp: time.Now(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		s.metrics.mu.Lock()
		s.metrics.errors++
		s.metrics.mu.Unlock()
		return fmt.Errorf("kafka send: %w", err)
	}

	s.metrics.mu.Lock()
	s.metrics.messagesSent++
	s.metrics.mu.Unlock()

	s.log.Debug("message sent", zap.String("topic", s.topic), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

// Consume runs the consumer group until ctx is done, passing every message to
// handler.
func (s *KafkaService) Consume(ctx context.Context, handler MessageHandler) error {
	if s.consumer == nil {
		return errors.New("kafka consumer not configured")
	}

	go func() {
		for err := range s.consumer.Errors() {
			s.metrics.mu.Lock()
			s.metrics.errors++
			s.metrics.mu.Unlock()
			s.log.Warn("consumer error", zap.Error(err))
		}
	}()

	h := &kafkaConsumerHandler{service: s, handler: handler}
	for {
		if err := s.consumer.Consume(ctx, []string{s.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			s.log.Error("consume failed", zap.String("topic", s.topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}
		// a rebalance ends Consume; loop unless we are shutting down
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close closes the producer and the consumer group.
func (s *KafkaService) Close() error {
	var errs []error
	if err := s.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka consumer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetMetrics returns the counters.
func (s *KafkaService) GetMetrics() map[string]int64 {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return map[string]int64{
		"messages_sent":     s.metrics.messagesSent,
		"messages_received": s.metrics.messagesReceived,
		"errors":            s.metrics.errors,
	}
}

// kafkaConsumerHandler implements sarama.ConsumerGroupHandler
type kafkaConsumerHandler struct {
	service *KafkaService
	handler MessageHandler
}

func (h *kafkaConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(session.Context(), message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *kafkaConsumerHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.service.log.Error("panic while handling message", zap.Any("panic", r), zap.Int64("offset", msg.Offset))
		}
	}()

	h.handler(ctx, msg.Value)

	h.service.metrics.mu.Lock()
	h.service.metrics.messagesReceived++
	h.service.metrics.mu.Unlock()
}

func strPtr(s string) *string {
	return &s
}
