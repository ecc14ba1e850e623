package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/observability/logging"
	"conversation-analytics-service/internal/observability/metrics"
)

// JobHandler processes one job-completed notification.
type JobHandler func(ctx context.Context, event models.JobCompleted) error

// EventValidator checks a decoded event.
type EventValidator interface {
	Validate(event any) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads job-completed notifications one at a time. Every message is
// committed once handled, whether or not handling succeeded, so a bad job
// cannot stall the partition.
type Consumer struct {
	reader    messageReader
	topic     string
	handler   JobHandler
	validator EventValidator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, handler JobHandler, v EventValidator, m *metrics.Metrics) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
	return newConsumer(reader, cfg.Topic, handler, v, m)
}

func newConsumer(r messageReader, topic string, handler JobHandler, v EventValidator, m *metrics.Metrics) *Consumer {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Consumer{
		reader:    r,
		topic:     topic,
		handler:   handler,
		validator: v,
		metrics:   m,
		logger:    logging.WithComponent("kafka-consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Str("topic", c.topic).Msg("Kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("events: fetch from %s: %w", c.topic, err)
		}

		err = c.handle(ctx, msg)
		c.metrics.RecordKafkaConsume(c.topic, err)
		if err != nil {
			c.logger.Error().
				Err(err).
				Str("topic", c.topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Failed to handle job notification")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("events: commit %s offset %d: %w", c.topic, msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var ev models.JobCompleted
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("decode job notification: %w", err)
	}
	if c.validator != nil {
		if err := c.validator.Validate(ev); err != nil {
			return err
		}
	}
	if ev.Status != "" && ev.Status != asr.StatusCompleted {
		c.logger.Debug().Str("jobName", ev.JobName).Str("status", ev.Status).Msg("Skipping unfinished job")
		return nil
	}
	return c.handler(ctx, ev)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
