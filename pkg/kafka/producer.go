package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// InsightEvent represents a lifecycle event about an insight
type InsightEvent struct {
	EventType      string       `json:"event_type"` // promoted, invalidated, expired
	TenantID       string       `json:"tenant_id"`
	InsightID      string       `json:"insight_id"`
	RuleID         string       `json:"rule_id"`
	RelationshipID *string      `json:"relationship_id,omitempty"`
	Tier           *models.Tier `json:"tier,omitempty"`
	Status         string       `json:"status"`
	ExpiresAt      time.Time    `json:"expires_at"`
	Timestamp      time.Time    `json:"timestamp"`
}

// StreakEvent represents a lifecycle event about the tenant streak
type StreakEvent struct {
	EventType      string     `json:"event_type"` // released
	TenantID       string     `json:"tenant_id"`
	PreviousStreak int        `json:"previous_streak"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// PublishInsightEvent publishes an insight lifecycle event to Kafka
func (p *Producer) PublishInsightEvent(ctx context.Context, event *InsightEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishInsightEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.InsightID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
			{Key: "rule_id", Value: []byte(event.RuleID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish insight event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"insight_id": event.InsightID,
		"rule_id":    event.RuleID,
	}).Debug("Published insight event")

	return nil
}

// PublishStreakEvent publishes a streak lifecycle event to Kafka
func (p *Producer) PublishStreakEvent(ctx context.Context, event *StreakEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishStreakEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.TenantID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish streak event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
	}).Debug("Published streak event")

	return nil
}
